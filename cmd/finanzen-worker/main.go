package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finanzen/internal/amqp"
	"finanzen/internal/cli"
	applog "finanzen/internal/log"
	"finanzen/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger("info", applog.ComponentWorker, os.Stdout)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker, os.Stdout)

	logger.Info("Starting finanzen-worker")

	if !cfg.RemoteEnabled() {
		logger.Error("The worker reads from the remote database; set REMOTE_DB_PATH")
		os.Exit(1)
	}
	if !cfg.AMQPEnabled() {
		logger.Error("The worker consumes change messages; set AMQP_URL")
		os.Exit(1)
	}

	stores, err := cli.OpenStores(cfg)
	if err != nil {
		logger.Error("Failed to open stores", applog.FieldError, err)
		os.Exit(1)
	}
	defer stores.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	ctx = applog.WithContext(ctx, logger)

	sink, err := cli.NewLedgerWriter(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger sheet", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.SheetsEnabled() {
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Warn("No GOOGLE_SPREADSHEET_ID set, rows are kept in memory only")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	exporter := worker.NewExportWorker(stores.Remote, sink, cfg.CategoryCacheTTL)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.UserID != "" {
		// Catch up on changes published while the worker was down.
		g.Go(func() error {
			if _, err := exporter.ExportAll(gctx, cfg.UserID); err != nil {
				logger.ErrorContext(gctx, "Startup export failed", applog.FieldError, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return client.Run(gctx, exporter.HandleChange)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", applog.FieldError, err)
		os.Exit(1)
	}
	<-done
}
