// Package worker drives occurrence generation outside the HTTP path: on a
// cron schedule for every family and on demand from AMQP requests.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/amqp"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/services"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/sheets"
)

// Generator materializes due occurrences for one family.
type Generator interface {
	Generate(ctx context.Context, familyID string, asOf core.Date) (services.GenerationResult, error)
}

// FamilyLister enumerates the families that own active definitions.
type FamilyLister interface {
	ListFamilies(ctx context.Context) ([]string, error)
}

// Forecaster is the subset of the forecast API the worker touches after a run.
type Forecaster interface {
	MonthlyForecast(ctx context.Context, req services.ForecastRequest, months int) ([]core.MonthlySummary, error)
	Invalidate(familyID string) int
}

// RunSummary totals one scheduled run across families.
type RunSummary struct {
	Families  int
	Generated int
	Skipped   int
	Failed    int
	// FamilyErrors holds families whose Generate call failed outright.
	FamilyErrors map[string]error
}

// GenerateWorker runs generation for one or all families, then refreshes the
// family's cached forecast and optionally exports it.
type GenerateWorker struct {
	generator    Generator
	families     FamilyLister
	forecaster   Forecaster
	exporter     sheets.ForecastExporter
	concurrency  int
	exportMonths int
	today        func() core.Date
	location     *time.Location
	logger       *log.Logger
}

// Option configures a GenerateWorker.
type Option func(*GenerateWorker)

// WithExporter exports exportMonths of monthly forecast after each family run.
func WithExporter(e sheets.ForecastExporter, exportMonths int) Option {
	return func(w *GenerateWorker) {
		w.exporter = e
		w.exportMonths = exportMonths
	}
}

func WithConcurrency(n int) Option {
	return func(w *GenerateWorker) { w.concurrency = n }
}

// WithToday sets the clock used when a run or request carries no as-of date.
func WithToday(today func() core.Date) Option {
	return func(w *GenerateWorker) { w.today = today }
}

// WithLocation sets the timezone cron schedules are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(w *GenerateWorker) { w.location = loc }
}

func WithLogger(l *log.Logger) Option {
	return func(w *GenerateWorker) { w.logger = l }
}

func NewGenerateWorker(gen Generator, families FamilyLister, fc Forecaster, opts ...Option) *GenerateWorker {
	w := &GenerateWorker{
		generator:   gen,
		families:    families,
		forecaster:  fc,
		concurrency: 4,
		today:       func() core.Date { return core.DateOf(time.Now()) },
		location:    time.UTC,
		logger:      log.Default(log.ComponentWorker),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	return w
}

// RunAll generates for every family with at most concurrency families in
// flight. A failing family does not stop the others; RunAll only returns an
// error when the family list cannot be read or ctx is cancelled.
func (w *GenerateWorker) RunAll(ctx context.Context, asOf core.Date) (RunSummary, error) {
	summary := RunSummary{FamilyErrors: map[string]error{}}
	if asOf.IsEmpty() {
		asOf = w.today()
	}

	families, err := w.families.ListFamilies(ctx)
	if err != nil {
		return summary, fmt.Errorf("list families: %w", err)
	}
	summary.Families = len(families)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, familyID := range families {
		familyID := familyID
		g.Go(func() error {
			result, err := w.RunFamily(gctx, familyID, asOf)

			mu.Lock()
			defer mu.Unlock()
			summary.Generated += result.GeneratedCount
			summary.Skipped += result.SkippedCount
			summary.Failed += len(result.Errors)
			if err != nil {
				summary.FamilyErrors[familyID] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	w.logger.InfoContext(ctx, "Scheduled generation complete",
		log.NewFields().
			WithOperation(log.OpGenerate).
			WithCounts(summary.Generated, summary.Skipped, summary.Failed).
			ToSlice()...)
	w.logger.InfoContext(ctx, "Scheduled generation families",
		"families", summary.Families,
		"family_errors", len(summary.FamilyErrors),
		log.FieldAsOf, asOf.String())
	return summary, nil
}

// RunFamily generates for one family, drops its cached forecasts and exports
// the refreshed monthly projection when an exporter is configured. Export
// failures are logged and never fail the run.
func (w *GenerateWorker) RunFamily(ctx context.Context, familyID string, asOf core.Date) (services.GenerationResult, error) {
	if asOf.IsEmpty() {
		asOf = w.today()
	}
	logger := w.logger.With(log.FieldFamilyID, familyID)

	result, err := w.generator.Generate(ctx, familyID, asOf)
	if w.forecaster != nil {
		w.forecaster.Invalidate(familyID)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Generation failed", log.FieldError, err.Error())
		return result, err
	}

	logger.InfoContext(ctx, "Generation complete",
		log.NewFields().WithCounts(result.GeneratedCount, result.SkippedCount, len(result.Errors)).ToSlice()...)

	if w.exporter != nil && w.forecaster != nil {
		w.export(ctx, logger, familyID, asOf)
	}
	return result, nil
}

func (w *GenerateWorker) export(ctx context.Context, logger *log.Logger, familyID string, asOf core.Date) {
	req := services.ForecastRequest{FamilyID: familyID, AsOf: asOf}
	months, err := w.forecaster.MonthlyForecast(ctx, req, w.exportMonths)
	if err != nil {
		logger.WarnContext(ctx, "Skipping export, forecast failed",
			log.FieldOperation, log.OpExport, log.FieldError, err.Error())
		return
	}
	ref, err := w.exporter.ExportMonthly(ctx, familyID, asOf, months)
	if err != nil {
		logger.WarnContext(ctx, "Export failed",
			log.FieldOperation, log.OpExport, log.FieldError, err.Error())
		return
	}
	logger.InfoContext(ctx, "Forecast exported", log.FieldOperation, log.OpExport, "range", ref)
}

// HandleGenerateRequest serves one AMQP generate request. Returning an error
// makes the consumer requeue the message, so only store-level failures are
// reported; per-definition errors live in the result.
func (w *GenerateWorker) HandleGenerateRequest(ctx context.Context, req *amqp.GenerateRequest) error {
	if req == nil {
		return errors.New("nil generate request")
	}
	w.logger.InfoContext(ctx, "Processing generate request",
		log.FieldFamilyID, req.FamilyID,
		log.FieldAsOf, req.AsOf.String(),
		"requested_at", req.RequestedAt)

	_, err := w.RunFamily(ctx, req.FamilyID, req.AsOf)
	return err
}

// Schedule registers RunAll under the cron spec. The caller starts and stops
// the returned scheduler. Overlapping runs are skipped.
func (w *GenerateWorker) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	logger := cronLogger{w.logger}
	c := cron.New(
		cron.WithLocation(w.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(spec, func() {
		if _, err := w.RunAll(ctx, core.Date{}); err != nil {
			w.logger.ErrorContext(ctx, "Scheduled generation failed", log.FieldError, err.Error())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return c, nil
}

// cronLogger routes cron's logging through the component logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.DebugContext(context.Background(), "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, log.FieldError, err)...)
}
