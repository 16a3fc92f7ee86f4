package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"compras/internal/amqp"
	"compras/internal/cli"
	"compras/internal/docstore/sqlite"
	"compras/internal/log"
	"compras/internal/metrics"
	"compras/internal/sheets"
	gsheet "compras/internal/sheets/google"
	"compras/internal/sheets/memory"
	"compras/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err == nil {
		err = cfg.ValidateWorker()
	}
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting compras-worker")

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	// The worker only reads documents, so it does not notify anyone.
	store, err := sqlite.Open(cfg.SQLiteDBPath, nil)
	if err != nil {
		cli.Fatal(logger, "Failed to open SQLite store", err, "path", cfg.SQLiteDBPath)
	}
	defer store.Close()

	var exporter sheets.MonthExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			YearPrefix:         cfg.GoogleSpreadsheetYearTabs,
		})
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		exporter = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = memory.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exports stay in memory")
	}

	amqpClient, err := amqp.NewClient(amqp.Config{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Queue:    cfg.AMQPQueue,
		Logger:   logger,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	collector := metrics.NewCollector("compras_worker")
	exportWorker := worker.NewExportWorker(store, exporter, logger, collector)

	// Catch up on changes made while the worker was down.
	logger.Info("Performing startup export...")
	if err := exportWorker.ExportAll(ctx); err != nil {
		logger.LogError(ctx, "Startup export failed", err, log.OpStartup)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.Consume(gctx, exportWorker.HandleMonthChanged)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           collector.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.LogError(context.Background(), "Worker stopped with error", err, log.OpShutdown)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
