package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/cli"
	apphttp "github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/http"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap("meudin")

	result := cli.InitBackend(context.Background(), logger, cfg)

	engine := cli.NewEngine(cfg, result.Stores, cli.Publisher(result), logger)
	engine.StartCacheCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		DefaultHorizonDays: cfg.DefaultHorizonDays,
		Today:              cfg.Today,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	}, engine.Generator, engine.Forecaster, result.Stores.Pinger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		engine.Close()
		if result.Cleanup != nil {
			err = errors.Join(err, result.Cleanup())
		}
		return err
	})

	logger.Info("Starting meudin server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", result.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
