package backend

import (
	"context"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/amqp"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores groups the persistence ports the engine depends on.
type Stores struct {
	Recurring    services.RecurringStore
	Installments services.InstallmentStore
	Transactions services.TransactionStore
	Pinger       Pinger
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the stores and an optional cleanup function.
// AMQP is nil when no broker is configured or it could not be reached.
type BackendResult struct {
	Stores  Stores
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Records loaded at startup. Empty disables seeding.
	SeedFile string

	// Optional broker
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
