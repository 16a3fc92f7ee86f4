package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"compras/internal/cache"
	"compras/internal/cli"
	"compras/internal/estimation"
	apphttp "compras/internal/http"
	"compras/internal/log"
	"compras/internal/metrics"
	"compras/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	collector := metrics.NewCollector("compras")
	stack, err := cli.NewStack(ctx, cfg, logger, collector)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	var (
		estimator apphttp.Estimator
		sweepers  []cache.Sweeper
	)
	if cfg.EstimationEnabled() {
		client := estimation.NewClient(estimation.ClientConfig{
			BaseURL: cfg.EstimatorURL,
			Model:   cfg.EstimatorModel,
			APIKey:  cfg.EstimatorAPIKey,
			Timeout: cfg.EstimatorTimeout,
			Logger:  logger,
		})
		svc := estimation.NewService(client, stack.Catalog.ItemNames(), estimation.ServiceConfig{
			Profile:  cfg.HouseholdProfile,
			CacheTTL: cfg.EstimationCacheTTL,
			Timeout:  cfg.EstimatorTimeout,
			Logger:   logger,
			Metrics:  collector,
		})
		estimator = svc
		sweepers = append(sweepers, svc.Cache())
		logger.Info("Estimation enabled", "model", cfg.EstimatorModel)
	} else {
		logger.Info("Estimation disabled - no ESTIMATOR_API_KEY provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Manager:   stack.Manager,
		Estimator: estimator,
		Logger:    logger,
		Metrics:   collector,
		Ready: func(ctx context.Context) error {
			_, err := stack.Backend.Months(ctx)
			return err
		},
	})
	srv.ReadTimeout = 10 * time.Second
	// Month reads wait for the first snapshot, so writes get more room.
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	startMonth := cfg.StartMonth(time.Now())
	if err := stack.Manager.Activate(ctx, startMonth); err != nil {
		logger.LogError(ctx, "Failed to activate start month", err, log.OpStartup, log.FieldMonth, startMonth)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting compras server", "port", cfg.Port, "backend", cfg.DataBackend, log.FieldMonth, startMonth)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if len(sweepers) > 0 {
		janitor := cache.NewJanitor(10*time.Minute, logger, sweepers...)
		g.Go(func() error { return janitor.Run(gctx) })
	}

	// Other instances sharing the database announce their writes over AMQP.
	if amqpClient := stack.Backend.AMQP; amqpClient != nil {
		refresher := worker.NewRefresher(stack.Backend.SQLite, logger)
		g.Go(func() error {
			err := amqpClient.Consume(gctx, refresher.HandleMonthChanged)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.LogError(shutdownCtx, "Server shutdown error", err, log.OpShutdown)
		}
		if err := stack.Close(shutdownCtx); err != nil {
			logger.LogError(shutdownCtx, "Failed to flush pending writes", err, log.OpShutdown)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.LogError(context.Background(), "Server error", err, log.OpShutdown, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
