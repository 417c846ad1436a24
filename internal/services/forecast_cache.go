package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/cache"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

// CachedForecaster memoizes forecasts per request. Entries for a family are
// dropped after that family's generate run.
type CachedForecaster struct {
	engine *ForecastEngine
	days   cache.Cache[[]core.ForecastDay]
}

func NewCachedForecaster(engine *ForecastEngine, c cache.Cache[[]core.ForecastDay]) *CachedForecaster {
	return &CachedForecaster{engine: engine, days: c}
}

// familyPrefix quotes the ID so one family's prefix never matches another
// family whose ID contains the separator.
func familyPrefix(familyID string) string {
	return strconv.Quote(familyID) + "|"
}

func forecastKey(req ForecastRequest) string {
	return fmt.Sprintf("%s%s|%d|%d", familyPrefix(req.FamilyID), req.AsOf, req.HorizonDays, req.OpeningBalance.Cents)
}

// Forecast serves from cache when possible. Errors are never cached.
func (c *CachedForecaster) Forecast(ctx context.Context, req ForecastRequest) ([]core.ForecastDay, error) {
	if c.days == nil {
		return c.engine.Forecast(ctx, req)
	}
	key := forecastKey(req)
	if days, ok := c.days.Get(key); ok {
		return days, nil
	}
	days, err := c.engine.Forecast(ctx, req)
	if err != nil {
		return nil, err
	}
	c.days.Set(key, days)
	return days, nil
}

func (c *CachedForecaster) MonthlyForecast(ctx context.Context, req ForecastRequest, months int) ([]core.MonthlySummary, error) {
	horizon, err := monthlyHorizon(req.AsOf, months)
	if err != nil {
		return nil, err
	}
	req.HorizonDays = horizon

	days, err := c.Forecast(ctx, req)
	if err != nil {
		return nil, err
	}
	return Aggregate(days), nil
}

// Invalidate drops every cached forecast of familyID.
func (c *CachedForecaster) Invalidate(familyID string) int {
	if c.days == nil {
		return 0
	}
	return c.days.DeletePrefix(familyPrefix(familyID))
}

// MaxHorizon returns the engine's horizon limit.
func (c *CachedForecaster) MaxHorizon() int { return c.engine.MaxHorizon() }
