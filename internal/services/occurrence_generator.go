package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
)

// GenerationError records why one definition could not be materialized.
type GenerationError struct {
	RecurringID string `json:"recurringId"`
	Message     string `json:"message"`
}

// GenerationResult is the partial-success outcome of one Generate call.
type GenerationResult struct {
	FamilyID       string             `json:"familyId"`
	AsOf           core.Date          `json:"asOf"`
	GeneratedCount int                `json:"generatedCount"`
	SkippedCount   int                `json:"skippedCount"`
	Errors         []GenerationError  `json:"errors"`
	Generated      []core.Transaction `json:"-"`
}

// OccurrenceGenerator materializes due recurring definitions into
// transactions, at most once per definition per period.
type OccurrenceGenerator struct {
	recurring    RecurringStore
	transactions TransactionStore
	scheduler    *Scheduler
	publisher    OccurrencePublisher
	logger       *log.Logger
	now          func() time.Time
	newID        func() string
}

// GeneratorOption configures an OccurrenceGenerator.
type GeneratorOption func(*OccurrenceGenerator)

// WithPublisher notifies p after each inserted occurrence.
func WithPublisher(p OccurrencePublisher) GeneratorOption {
	return func(g *OccurrenceGenerator) { g.publisher = p }
}

func WithGeneratorLogger(l *log.Logger) GeneratorOption {
	return func(g *OccurrenceGenerator) { g.logger = l }
}

// WithClock overrides the wall clock used for CreatedAt and TouchLastGenerated.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *OccurrenceGenerator) { g.now = now }
}

func NewOccurrenceGenerator(recurring RecurringStore, transactions TransactionStore, scheduler *Scheduler, opts ...GeneratorOption) *OccurrenceGenerator {
	g := &OccurrenceGenerator{
		recurring:    recurring,
		transactions: transactions,
		scheduler:    scheduler,
		logger:       log.Default(log.ComponentGenerator),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type outcome int

const (
	outcomeNotDue outcome = iota
	outcomeSkipped
	outcomeGenerated
)

// Generate materializes every definition of familyID that is due as of asOf.
//
// Failures on one definition are collected in the result and never abort the
// batch. Only a failure to list the definitions fails the call. On context
// cancellation the partial result is returned together with ctx.Err().
func (g *OccurrenceGenerator) Generate(ctx context.Context, familyID string, asOf core.Date) (GenerationResult, error) {
	result := GenerationResult{FamilyID: familyID, AsOf: asOf, Errors: []GenerationError{}}
	if g.recurring == nil || g.transactions == nil || g.scheduler == nil {
		return result, fmt.Errorf("generator not properly initialized")
	}

	defs, err := g.recurring.ListActive(ctx, familyID)
	if err != nil {
		return result, fmt.Errorf("list recurring definitions: %w", err)
	}

	g.logger.DebugContext(ctx, "Processing recurring definitions",
		log.FieldFamilyID, familyID,
		"total_active", len(defs),
		log.FieldAsOf, asOf.String())

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		tx, res, err := g.processDefinition(ctx, def, asOf)
		if err != nil {
			g.logger.ErrorContext(ctx, "Failed to generate occurrence",
				log.FieldFamilyID, familyID,
				log.FieldRecurringID, def.ID,
				log.FieldError, err)
			result.Errors = append(result.Errors, GenerationError{RecurringID: def.ID, Message: err.Error()})
			continue
		}

		switch res {
		case outcomeSkipped:
			result.SkippedCount++
		case outcomeGenerated:
			result.GeneratedCount++
			result.Generated = append(result.Generated, tx)
		}
	}

	log.NewStructuredLogger(g.logger).LogGeneration(ctx, familyID, result.GeneratedCount, result.SkippedCount, len(result.Errors))
	return result, nil
}

func (g *OccurrenceGenerator) processDefinition(ctx context.Context, def core.RecurringDefinition, asOf core.Date) (core.Transaction, outcome, error) {
	if err := def.Validate(); err != nil {
		return core.Transaction{}, outcomeNotDue, fmt.Errorf("invalid definition: %w", err)
	}
	if !def.ActiveOn(asOf) {
		return core.Transaction{}, outcomeNotDue, nil
	}

	dueDate, scheduled := g.scheduler.DueDateInPeriod(def, asOf)
	if !scheduled || asOf.Before(dueDate) || dueDate.Before(def.StartDate) {
		return core.Transaction{}, outcomeNotDue, nil
	}

	existing, err := g.transactions.FindByRecurringIDInRange(ctx, def.ID, core.MonthStart(asOf), core.MonthEnd(asOf))
	if err != nil {
		return core.Transaction{}, outcomeNotDue, fmt.Errorf("check existing by recurring id: %w", err)
	}
	if len(existing) > 0 {
		return core.Transaction{}, outcomeSkipped, nil
	}

	matches, err := g.transactions.FindByDescriptionAmountDate(ctx, def.FamilyID, def.Description, def.Amount, dueDate)
	if err != nil {
		return core.Transaction{}, outcomeNotDue, fmt.Errorf("check existing by description: %w", err)
	}
	if len(matches) > 0 {
		return core.Transaction{}, outcomeSkipped, nil
	}

	now := g.now()
	tx := core.Transaction{
		ID:            g.newID(),
		FamilyID:      def.FamilyID,
		RecurringID:   def.ID,
		Kind:          def.Kind,
		Description:   def.Description,
		Amount:        def.Amount,
		Date:          dueDate,
		Period:        g.scheduler.Period(def, dueDate),
		CategoryID:    def.CategoryID,
		AutoGenerated: true,
		CreatedAt:     now.UTC(),
	}

	if err := g.transactions.Insert(ctx, tx); err != nil {
		if errors.Is(err, core.ErrDuplicateOccurrence) {
			return core.Transaction{}, outcomeSkipped, nil
		}
		return core.Transaction{}, outcomeNotDue, fmt.Errorf("insert occurrence: %w", err)
	}

	if err := g.recurring.TouchLastGenerated(ctx, def.ID, now); err != nil {
		g.logger.WarnContext(ctx, "Failed to update last generated timestamp",
			log.FieldRecurringID, def.ID,
			log.FieldError, err)
	}

	if g.publisher != nil {
		if err := g.publisher.PublishOccurrence(ctx, tx); err != nil {
			g.logger.ErrorContext(ctx, "Failed to publish occurrence",
				log.FieldTransactionID, tx.ID,
				log.FieldError, err)
		}
	}

	g.logger.InfoContext(ctx, "Created occurrence from recurring definition",
		log.NewFields().
			WithFamily(def.FamilyID).
			WithOccurrence(def.ID, tx.Period, def.Amount.Cents).
			ToSlice()...)

	return tx, outcomeGenerated, nil
}
