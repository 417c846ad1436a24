package services

import (
	"context"
	"time"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

// TransactionStore persists materialized transactions. Insert must reject a
// second auto-generated transaction for the same (RecurringID, Period) with
// core.ErrDuplicateOccurrence.
type TransactionStore interface {
	Insert(ctx context.Context, tx core.Transaction) error
	FindByRecurringIDInRange(ctx context.Context, recurringID string, start, end core.Date) ([]core.Transaction, error)
	FindByDescriptionAmountDate(ctx context.Context, familyID, description string, amount core.Money, date core.Date) ([]core.Transaction, error)
}

// RecurringStore reads recurring definitions.
type RecurringStore interface {
	ListActive(ctx context.Context, familyID string) ([]core.RecurringDefinition, error)
	TouchLastGenerated(ctx context.Context, id string, at time.Time) error
	// ListFamilies returns every family owning at least one active definition.
	ListFamilies(ctx context.Context) ([]string, error)
}

type InstallmentStore interface {
	ListActive(ctx context.Context, familyID string) ([]core.InstallmentPlan, error)
}

// OccurrencePublisher is notified after each successful insert.
type OccurrencePublisher interface {
	PublishOccurrence(ctx context.Context, tx core.Transaction) error
}
