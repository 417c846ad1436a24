package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/amqp"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/storage"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	dial   func(url, exchange, queue string) (*amqp.Client, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
		dial:   amqp.NewClient,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachAMQP(result, config)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	seed, err := memory.ReadSeed(config.SeedFile)
	if err == nil {
		err = seedSQLite(ctx, repo, seed)
	}
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("seed sqlite backend: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"seeded_definitions", len(seed.Recurring),
		"seeded_plans", len(seed.Installments))

	return &BackendResult{
		Stores: Stores{
			Recurring:    repo.Recurring(),
			Installments: repo.Installments(),
			Transactions: repo,
			Pinger:       repo,
		},
		Cleanup: repo.Close,
	}, nil
}

// seedSQLite upserts definitions and plans and inserts transactions that are
// not already present, so restarting with the same seed file is harmless.
func seedSQLite(ctx context.Context, repo *storage.SQLiteRepository, seed memory.Seed) error {
	for _, d := range seed.Recurring {
		if err := repo.CreateRecurringDefinition(ctx, d); err != nil {
			return fmt.Errorf("definition %s: %w", d.ID, err)
		}
	}
	for _, p := range seed.Installments {
		if err := repo.CreateInstallmentPlan(ctx, p); err != nil {
			return fmt.Errorf("installment plan %s: %w", p.ID, err)
		}
	}
	for _, tx := range seed.Transactions {
		err := repo.Insert(ctx, tx)
		if err == nil || errors.Is(err, storage.ErrTransactionExists) || errors.Is(err, core.ErrDuplicateOccurrence) {
			continue
		}
		return fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Stores: Stores{
			Recurring:    store,
			Installments: store.Installments(),
			Transactions: store,
			Pinger:       store,
		},
	}, nil
}

// attachAMQP connects the optional broker. A broker that cannot be reached is
// logged and skipped; the engine works without it.
func (f *DefaultFactory) attachAMQP(result *BackendResult, config Config) {
	if config.AMQPURL == "" {
		return
	}
	client, err := f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.AMQP = client
	storeCleanup := result.Cleanup
	result.Cleanup = func() error {
		err := client.Close()
		if storeCleanup != nil {
			err = errors.Join(err, storeCleanup())
		}
		return err
	}
}
