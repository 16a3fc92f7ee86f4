// Package memory keeps exported months in process. The worker uses it when
// no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"compras/internal/core"
	"compras/internal/sheets"
)

type Exporter struct {
	mu    sync.Mutex
	tabs  map[string][][]any
	count int
}

var _ sheets.MonthExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{tabs: map[string][][]any{}}
}

// ExportMonth implements sheets.MonthExporter.
func (e *Exporter) ExportMonth(_ context.Context, month string, tree core.Tree) error {
	rows := sheets.Rows(tree)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tabs[sheets.TabName(month)] = rows
	e.count++
	return nil
}

// Tab returns the rows last exported to tab.
func (e *Exporter) Tab(tab string) ([][]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.tabs[tab]
	return rows, ok
}

// Exports returns how many exports were made.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
