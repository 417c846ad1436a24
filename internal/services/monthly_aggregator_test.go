package services

import (
	"context"
	"errors"
	"testing"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

func forecastDay(date core.Date, income, expenses, installments int64, alert core.AlertLevel) core.ForecastDay {
	return core.ForecastDay{
		Date:         date,
		Income:       core.Money{Cents: income},
		Expenses:     core.Money{Cents: expenses},
		Installments: core.Money{Cents: installments},
		Alert:        alert,
	}
}

func TestAggregate(t *testing.T) {
	days := []core.ForecastDay{
		forecastDay(core.NewDate(2024, 1, 30), 1000, 0, 0, core.AlertOK),
		forecastDay(core.NewDate(2024, 1, 31), 0, 300, 0, core.AlertWarning),
		forecastDay(core.NewDate(2024, 2, 1), 0, 0, 200, core.AlertOK),
		forecastDay(core.NewDate(2024, 2, 2), 500, 100, 0, core.AlertDanger),
		forecastDay(core.NewDate(2024, 2, 3), 0, 0, 0, core.AlertOK),
	}

	got := Aggregate(days)
	want := []core.MonthlySummary{
		{Month: "2024-01", Income: core.Money{Cents: 1000}, Expenses: core.Money{Cents: 300}, Balance: core.Money{Cents: 700}, Alert: core.AlertWarning},
		{Month: "2024-02", Income: core.Money{Cents: 500}, Expenses: core.Money{Cents: 100}, Installments: core.Money{Cents: 200}, Balance: core.Money{Cents: 200}, Alert: core.AlertDanger},
	}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestMonthlyForecast(t *testing.T) {
	store := newFakeStore(
		def("salary", core.Income, "3000.00", 5),
		def("rent", core.Expense, "1000.00", 31),
	)
	engine := newTestEngine(store)

	months, err := engine.MonthlyForecast(context.Background(), ForecastRequest{
		FamilyID: "fam-1",
		AsOf:     core.NewDate(2024, 1, 15),
	}, 3)
	if err != nil {
		t.Fatalf("MonthlyForecast: %v", err)
	}
	if len(months) != 3 {
		t.Fatalf("len = %d, want 3", len(months))
	}

	// January starts after the salary day, so only rent falls in it.
	if months[0].Month != "2024-01" || months[0].Income.Cents != 0 || months[0].Expenses.Cents != 100000 {
		t.Errorf("january = %+v", months[0])
	}
	if months[0].Alert != core.AlertDanger {
		t.Errorf("january alert = %s", months[0].Alert)
	}
	// Rent clamps to Feb 29.
	if months[1].Month != "2024-02" || months[1].Balance.String() != "2000.00" {
		t.Errorf("february = %+v", months[1])
	}
	if months[2].Month != "2024-03" {
		t.Errorf("march = %+v", months[2])
	}
}

func TestMonthlyForecast_InvalidMonths(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.MonthlyForecast(context.Background(), ForecastRequest{
		FamilyID: "fam-1", AsOf: core.NewDate(2024, 1, 1),
	}, 0)
	if !errors.Is(err, ErrInvalidHorizon) {
		t.Fatalf("expected ErrInvalidHorizon, got %v", err)
	}
}
