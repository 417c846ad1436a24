package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
)

const (
	DefaultHorizonDays = 30
	MaxHorizonDays     = 366
)

var (
	// ErrForecastUnavailable wraps store read failures. Callers may retry.
	ErrForecastUnavailable = errors.New("forecast unavailable")
	ErrInvalidHorizon      = errors.New("invalid horizon")
)

// DefaultLowBalanceThreshold is 500.00 in the local currency.
var DefaultLowBalanceThreshold = core.Money{Cents: 50000}

// ForecastRequest describes one projection.
type ForecastRequest struct {
	FamilyID       string
	AsOf           core.Date
	HorizonDays    int
	OpeningBalance core.Money
}

// ForecastEngine projects daily cashflow from recurring definitions and
// installment plans. It never writes.
type ForecastEngine struct {
	recurring    RecurringStore
	installments InstallmentStore
	scheduler    *Scheduler
	projector    *InstallmentProjector
	lowThreshold core.Money
	maxHorizon   int
	logger       *log.Logger
}

// ForecastOption configures a ForecastEngine.
type ForecastOption func(*ForecastEngine)

func WithLowBalanceThreshold(m core.Money) ForecastOption {
	return func(e *ForecastEngine) { e.lowThreshold = m }
}

func WithMaxHorizon(days int) ForecastOption {
	return func(e *ForecastEngine) {
		if days > 0 {
			e.maxHorizon = days
		}
	}
}

func WithForecastLogger(l *log.Logger) ForecastOption {
	return func(e *ForecastEngine) { e.logger = l }
}

func NewForecastEngine(recurring RecurringStore, installments InstallmentStore, scheduler *Scheduler, projector *InstallmentProjector, opts ...ForecastOption) *ForecastEngine {
	e := &ForecastEngine{
		recurring:    recurring,
		installments: installments,
		scheduler:    scheduler,
		projector:    projector,
		lowThreshold: DefaultLowBalanceThreshold,
		maxHorizon:   MaxHorizonDays,
		logger:       log.Default(log.ComponentForecast),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxHorizon returns the largest accepted horizon in days.
func (e *ForecastEngine) MaxHorizon() int { return e.maxHorizon }

// Forecast returns req.HorizonDays consecutive days starting at req.AsOf.
// Any store failure fails the whole call with ErrForecastUnavailable.
func (e *ForecastEngine) Forecast(ctx context.Context, req ForecastRequest) ([]core.ForecastDay, error) {
	if req.HorizonDays < 1 || req.HorizonDays > e.maxHorizon {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidHorizon, req.HorizonDays, e.maxHorizon)
	}
	if req.AsOf.IsEmpty() {
		return nil, fmt.Errorf("forecast: as-of date is required")
	}

	defs, plans, err := e.load(ctx, req.FamilyID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load forecast inputs",
			log.FieldFamilyID, req.FamilyID,
			log.FieldError, err)
		return nil, err
	}
	defs, plans = e.dropInvalid(ctx, defs, plans)

	days := make([]core.ForecastDay, 0, req.HorizonDays)
	balance := req.OpeningBalance
	for i := 0; i < req.HorizonDays; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day := e.projectDay(core.AddDays(req.AsOf, i), defs, plans)
		balance = balance.Add(day.Net)
		day.Balance = balance
		day.Alert = core.ClassifyBalance(balance, e.lowThreshold)
		days = append(days, day)
	}

	e.logger.DebugContext(ctx, "Forecast computed",
		log.FieldFamilyID, req.FamilyID,
		log.FieldHorizonDays, req.HorizonDays,
		"definitions", len(defs),
		"plans", len(plans))

	return days, nil
}

// load reads definitions and plans concurrently and sorts them by ID so
// event order is stable regardless of store ordering.
func (e *ForecastEngine) load(ctx context.Context, familyID string) ([]core.RecurringDefinition, []core.InstallmentPlan, error) {
	var (
		defs  []core.RecurringDefinition
		plans []core.InstallmentPlan
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		defs, err = e.recurring.ListActive(gctx, familyID)
		if err != nil {
			return fmt.Errorf("%w: list recurring definitions: %w", ErrForecastUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		if e.installments == nil {
			return nil
		}
		var err error
		plans, err = e.installments.ListActive(gctx, familyID)
		if err != nil {
			return fmt.Errorf("%w: list installment plans: %w", ErrForecastUnavailable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.SliceStable(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return defs, plans, nil
}

// dropInvalid removes items that fail validation, warning once per item.
func (e *ForecastEngine) dropInvalid(ctx context.Context, defs []core.RecurringDefinition, plans []core.InstallmentPlan) ([]core.RecurringDefinition, []core.InstallmentPlan) {
	validDefs := make([]core.RecurringDefinition, 0, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			e.logger.WarnContext(ctx, "Skipping invalid recurring definition",
				log.FieldFamilyID, def.FamilyID,
				log.FieldRecurringID, def.ID,
				log.FieldError, err)
			continue
		}
		validDefs = append(validDefs, def)
	}
	validPlans := make([]core.InstallmentPlan, 0, len(plans))
	for _, plan := range plans {
		if err := plan.Validate(); err != nil {
			e.logger.WarnContext(ctx, "Skipping invalid installment plan",
				log.FieldFamilyID, plan.FamilyID,
				log.FieldPlanID, plan.ID,
				log.FieldError, err)
			continue
		}
		validPlans = append(validPlans, plan)
	}
	return validDefs, validPlans
}

func (e *ForecastEngine) projectDay(date core.Date, defs []core.RecurringDefinition, plans []core.InstallmentPlan) core.ForecastDay {
	day := core.ForecastDay{Date: date, Events: []core.ForecastEvent{}}

	for _, def := range defs {
		if !e.scheduler.IsDue(def, date) {
			continue
		}
		ev := core.ForecastEvent{
			Description: def.Description,
			Amount:      def.Amount,
			CategoryID:  def.CategoryID,
			SourceID:    def.ID,
		}
		if def.Kind == core.Income {
			ev.Type = core.EventIncome
			day.Income = day.Income.Add(def.Amount)
		} else {
			ev.Type = core.EventExpense
			day.Expenses = day.Expenses.Add(def.Amount)
		}
		day.Events = append(day.Events, ev)
	}

	for _, plan := range plans {
		n, ok := e.projector.DueOn(plan, date)
		if !ok {
			continue
		}
		day.Installments = day.Installments.Add(plan.Amount)
		day.Events = append(day.Events, core.ForecastEvent{
			Type:              core.EventInstallment,
			Description:       fmt.Sprintf("%s (%d/%d)", plan.Description, n, plan.TotalInstallments),
			Amount:            plan.Amount,
			CategoryID:        plan.CategoryID,
			SourceID:          plan.ID,
			InstallmentNumber: n,
		})
	}

	day.Net = day.Income.Sub(day.Expenses).Sub(day.Installments)
	return day
}
