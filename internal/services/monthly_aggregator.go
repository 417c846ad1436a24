package services

import (
	"context"
	"fmt"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

// Aggregate rolls days up by calendar month in first-seen order. A month's
// alert is the worst alert of any of its days.
func Aggregate(days []core.ForecastDay) []core.MonthlySummary {
	summaries := []core.MonthlySummary{}
	index := make(map[string]int)

	for _, d := range days {
		key := core.PeriodKey(d.Date)
		i, ok := index[key]
		if !ok {
			i = len(summaries)
			index[key] = i
			summaries = append(summaries, core.MonthlySummary{Month: key, Alert: core.AlertOK})
		}
		s := &summaries[i]
		s.Income = s.Income.Add(d.Income)
		s.Expenses = s.Expenses.Add(d.Expenses)
		s.Installments = s.Installments.Add(d.Installments)
		s.Alert = core.Worst(s.Alert, d.Alert)
	}

	for i := range summaries {
		s := &summaries[i]
		s.Balance = s.Income.Sub(s.Expenses).Sub(s.Installments)
	}
	return summaries
}

// MonthlyForecast projects from req.AsOf through the end of the month that is
// months-1 months later and aggregates the result. req.HorizonDays is ignored.
func (e *ForecastEngine) MonthlyForecast(ctx context.Context, req ForecastRequest, months int) ([]core.MonthlySummary, error) {
	horizon, err := monthlyHorizon(req.AsOf, months)
	if err != nil {
		return nil, err
	}
	req.HorizonDays = horizon

	days, err := e.Forecast(ctx, req)
	if err != nil {
		return nil, err
	}
	return Aggregate(days), nil
}

// monthlyHorizon counts the days from asOf through the end of the month that
// is months-1 months later.
func monthlyHorizon(asOf core.Date, months int) (int, error) {
	if months < 1 {
		return 0, fmt.Errorf("%w: months must be positive, got %d", ErrInvalidHorizon, months)
	}
	if asOf.IsEmpty() {
		return 0, fmt.Errorf("forecast: as-of date is required")
	}
	last := core.MonthEnd(core.AddMonths(asOf, months-1))
	return core.DaysBetween(asOf, last) + 1, nil
}
