package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/cli"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
	gsheet "github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/sheets/google"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap("recurring-worker")

	result := cli.InitBackend(context.Background(), logger, cfg)
	engine := cli.NewEngine(cfg, result.Stores, cli.Publisher(result), logger)
	engine.StartCacheCleanup(time.Minute)

	opts := []worker.Option{
		worker.WithConcurrency(cfg.GenerateConcurrency),
		worker.WithToday(cfg.Today),
		worker.WithLocation(cfg.Location),
		worker.WithLogger(logger.WithComponent(log.ComponentWorker)),
	}
	if cfg.SheetsExportEnabled() {
		exporter, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleForecastSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		}, logger.WithComponent(log.ComponentSheets))
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		opts = append(opts, worker.WithExporter(exporter, cfg.ExportMonths))
		logger.Info("Forecast export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "months", cfg.ExportMonths)
	} else {
		logger.Info("Forecast export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	w := worker.NewGenerateWorker(engine.Generator, result.Stores.Recurring, engine.Forecaster, opts...)

	// Scheduled and consumed work stop with ctx; the cleanup below waits for
	// a running cron job before closing the stores.
	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	scheduler, err := w.Schedule(runCtx, cfg.GenerateSchedule)
	if err != nil {
		logger.Error("Invalid generate schedule", log.FieldError, err, "schedule", cfg.GenerateSchedule)
		os.Exit(1)
	}

	logger.Info("Running initial generation...")
	if summary, err := w.RunAll(runCtx, core.Date{}); err != nil {
		logger.Error("Initial generation failed", log.FieldError, err)
	} else {
		logger.Info("Initial generation complete",
			"families", summary.Families,
			log.FieldGenerated, summary.Generated,
			log.FieldSkipped, summary.Skipped,
			log.FieldFailed, summary.Failed)
	}

	scheduler.Start()
	logger.Info("Generation scheduled", "schedule", cfg.GenerateSchedule, "timezone", cfg.Location.String())

	consumerDone := make(chan struct{})
	if result.AMQP != nil {
		go func() {
			defer close(consumerDone)
			err := result.AMQP.ConsumeGenerateRequests(runCtx, w.HandleGenerateRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		close(consumerDone)
		logger.Info("AMQP disabled - only scheduled generation will run")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		stopRuns()
		select {
		case <-scheduler.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-consumerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
		engine.Close()
		if result.Cleanup != nil {
			return result.Cleanup()
		}
		return nil
	})

	cli.WaitForShutdown(ctx, done)
}
