// Package cli provides common CLI initialization utilities shared by
// cmd/meudin and cmd/recurring-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/backend"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/cache"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/config"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/services"
)

// forecastCacheSize bounds cached forecast responses per process.
const forecastCacheSize = 512

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging at the given LOG_LEVEL and
// installs it as the default logger.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// Bootstrap loads .env and the environment, sets up logging and validates the
// configuration. It exits the process on validation failure.
func Bootstrap(name string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting "+name,
		log.FieldOperation, log.OpStartup,
		"backend", cfg.DataBackend,
		"timezone", cfg.Location.String())
	return cfg, logger
}

// InitBackend creates the configured stores or exits the process.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return result
}

// Publisher returns the backend's broker as an occurrence publisher, or nil
// when no broker is connected.
func Publisher(result *backend.BackendResult) services.OccurrencePublisher {
	if result == nil || result.AMQP == nil {
		return nil
	}
	return result.AMQP
}

// Engine bundles the generation and forecast services built from one set of
// stores.
type Engine struct {
	Generator  *services.OccurrenceGenerator
	Forecaster *services.CachedForecaster
	Caches     *cache.Manager

	cleanupRunning bool
}

// NewEngine wires the scheduler, projector, generator and cached forecaster.
// A zero FORECAST_CACHE_TTL disables the forecast cache.
func NewEngine(cfg *config.Config, stores backend.Stores, publisher services.OccurrencePublisher, logger *log.Logger) *Engine {
	scheduler := services.NewScheduler()
	projector := services.NewInstallmentProjector(cfg.InstallmentDueDay)

	genOpts := []services.GeneratorOption{
		services.WithGeneratorLogger(logger.WithComponent(log.ComponentGenerator)),
	}
	if publisher != nil {
		genOpts = append(genOpts, services.WithPublisher(publisher))
	}
	generator := services.NewOccurrenceGenerator(stores.Recurring, stores.Transactions, scheduler, genOpts...)

	engine := services.NewForecastEngine(stores.Recurring, stores.Installments, scheduler, projector,
		services.WithLowBalanceThreshold(cfg.LowBalanceThreshold),
		services.WithMaxHorizon(cfg.MaxHorizonDays),
		services.WithForecastLogger(logger.WithComponent(log.ComponentForecast)),
	)

	manager := cache.NewManager()
	var days cache.Cache[[]core.ForecastDay]
	if cfg.ForecastCacheTTL > 0 {
		lru := cache.NewLRUCache[[]core.ForecastDay](forecastCacheSize, cfg.ForecastCacheTTL)
		manager.Register(lru)
		days = lru
	}

	return &Engine{
		Generator:  generator,
		Forecaster: services.NewCachedForecaster(engine, days),
		Caches:     manager,
	}
}

// StartCacheCleanup expires cached forecasts every interval until Close.
func (e *Engine) StartCacheCleanup(interval time.Duration) {
	if e.cleanupRunning {
		return
	}
	e.Caches.StartCleanup(interval)
	e.cleanupRunning = true
}

// Close stops background cache cleanup.
func (e *Engine) Close() {
	if e.cleanupRunning {
		e.Caches.Stop()
		e.cleanupRunning = false
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished or timed out.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context) error) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			if err := cleanup(shutdownCtx); err != nil {
				logger.Error("Shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, err)
				return
			}
		}
		logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
