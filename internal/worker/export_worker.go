// Package worker exports month documents to a spreadsheet whenever a
// change message arrives.
package worker

import (
	"context"
	"fmt"
	"sync"

	"compras/internal/amqp"
	"compras/internal/docstore"
	"compras/internal/log"
	"compras/internal/metrics"
	"compras/internal/sheets"
)

// Reader reads month documents.
type Reader interface {
	Get(ctx context.Context, month string) (docstore.Snapshot, error)
	Months(ctx context.Context) ([]string, error)
}

// ExportWorker mirrors month documents to a sheets.MonthExporter. It
// remembers the last exported version of each month and skips messages
// that would export the same or an older version.
type ExportWorker struct {
	reader   Reader
	exporter sheets.MonthExporter
	logger   *log.Logger
	metrics  *metrics.Collector

	mu       sync.Mutex
	exported map[string]int64
}

func NewExportWorker(reader Reader, exporter sheets.MonthExporter, logger *log.Logger, m *metrics.Collector) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		reader:   reader,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		metrics:  m,
		exported: map[string]int64{},
	}
}

// HandleMonthChanged is the amqp.Handler of the worker.
func (w *ExportWorker) HandleMonthChanged(ctx context.Context, msg *amqp.MonthChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing month changed message",
		log.FieldMonth, msg.Month,
		log.FieldVersion, msg.Version,
		log.FieldOrigin, msg.Origin)
	_, err := w.Export(ctx, msg.Month)
	return err
}

// Export writes the current document of month. It reports whether an
// export happened.
func (w *ExportWorker) Export(ctx context.Context, month string) (bool, error) {
	snap, err := w.reader.Get(ctx, month)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", month, err)
	}
	if !snap.Exists {
		w.logger.WarnContext(ctx, "Month has no document, nothing to export", log.FieldMonth, month)
		return false, nil
	}

	w.mu.Lock()
	last := w.exported[month]
	w.mu.Unlock()
	if snap.Version <= last {
		w.logger.DebugContext(ctx, "Month already exported",
			log.FieldMonth, month,
			log.FieldVersion, snap.Version)
		return false, nil
	}

	err = w.exporter.ExportMonth(ctx, month, snap.Tree)
	w.metrics.RecordExport(err)
	if err != nil {
		return false, fmt.Errorf("export %s: %w", month, err)
	}

	w.mu.Lock()
	if snap.Version > w.exported[month] {
		w.exported[month] = snap.Version
	}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Month exported",
		log.FieldMonth, month,
		log.FieldVersion, snap.Version,
		log.FieldCount, snap.Tree.ItemCount())
	return true, nil
}

// ExportAll exports every stored month. It is run at start-up to catch up
// on messages missed while the worker was down.
func (w *ExportWorker) ExportAll(ctx context.Context) error {
	months, err := w.reader.Months(ctx)
	if err != nil {
		return fmt.Errorf("list months: %w", err)
	}
	exported, failed := 0, 0
	for _, m := range months {
		ok, err := w.Export(ctx, m)
		if err != nil {
			failed++
			w.logger.LogError(ctx, "Start-up export failed", err, log.OpExport, log.FieldMonth, m)
			continue
		}
		if ok {
			exported++
		}
	}
	w.logger.InfoContext(ctx, "Start-up export finished", "exported", exported, "failed", failed)
	return nil
}
