package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 2, 29))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-02-29"` {
		t.Fatalf("got %s", b)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-03-01"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2024, 3, 1)) {
		t.Fatalf("got %v", d)
	}
	if err := json.Unmarshal([]byte(`null`), &d); err != nil || !d.IsEmpty() {
		t.Fatalf("null should reset date, got %v err=%v", d, err)
	}
	if err := json.Unmarshal([]byte(`"2024-13-01"`), &d); err == nil {
		t.Fatalf("expected error for month 13")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func validDefinition() RecurringDefinition {
	return RecurringDefinition{
		ID:          "rd-1",
		FamilyID:    "fam-1",
		Kind:        Expense,
		Description: "Rent",
		Amount:      MustMoney("200.00"),
		Frequency:   Monthly,
		DayOfMonth:  31,
		StartDate:   NewDate(2024, 1, 1),
		Active:      true,
	}
}

func TestRecurringDefinitionValidate(t *testing.T) {
	if err := validDefinition().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecurringDefinition)
		want   error
	}{
		{"zero amount", func(d *RecurringDefinition) { d.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(d *RecurringDefinition) { d.Amount = Money{Cents: -100} }, ErrInvalidAmount},
		{"day 0", func(d *RecurringDefinition) { d.DayOfMonth = 0 }, ErrInvalidDayOfMonth},
		{"day 32", func(d *RecurringDefinition) { d.DayOfMonth = 32 }, ErrInvalidDayOfMonth},
		{"bad kind", func(d *RecurringDefinition) { d.Kind = "transfer" }, ErrInvalidKind},
		{"bad frequency", func(d *RecurringDefinition) { d.Frequency = "hourly" }, ErrInvalidFrequency},
		{"empty description", func(d *RecurringDefinition) { d.Description = "  " }, ErrEmptyDescription},
		{"empty family", func(d *RecurringDefinition) { d.FamilyID = "" }, ErrEmptyFamily},
		{"end before start", func(d *RecurringDefinition) { d.EndDate = NewDate(2023, 12, 31) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDefinition()
			tt.mutate(&d)
			err := d.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReservedFrequenciesAreValid(t *testing.T) {
	for _, f := range []Frequency{Monthly, Weekly, Biweekly, Yearly} {
		if !f.Valid() {
			t.Errorf("%s should be valid", f)
		}
	}
}

func TestActiveOn(t *testing.T) {
	d := validDefinition()
	d.EndDate = NewDate(2024, 6, 30)

	cases := []struct {
		date Date
		want bool
	}{
		{NewDate(2023, 12, 31), false},
		{NewDate(2024, 1, 1), true},
		{NewDate(2024, 6, 30), true},
		{NewDate(2024, 7, 1), false},
	}
	for _, tc := range cases {
		if got := d.ActiveOn(tc.date); got != tc.want {
			t.Errorf("ActiveOn(%s) = %v, want %v", tc.date, got, tc.want)
		}
	}
}

func TestInstallmentPlanValidate(t *testing.T) {
	good := InstallmentPlan{
		ID:                 "ip-1",
		FamilyID:           "fam-1",
		Description:        "TV",
		StartDate:          NewDate(2024, 3, 1),
		Amount:             MustMoney("150.00"),
		TotalInstallments:  3,
		CurrentInstallment: 1,
		Active:             true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []InstallmentPlan{good, good, good}
	bads[0].CurrentInstallment = 0
	bads[1].CurrentInstallment = 4
	bads[2].TotalInstallments = 0
	for i, p := range bads {
		if err := p.Validate(); !errors.Is(err, ErrInvalidInstallment) {
			t.Fatalf("case %d expected ErrInvalidInstallment, got %v", i, err)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		FamilyID:    "fam-1",
		Kind:        Income,
		Description: "Salary",
		Amount:      Money{Cents: 100},
		Date:        NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{FamilyID: "f", Kind: Income, Description: "a", Amount: Money{Cents: 1}}, // zero date
		{FamilyID: "f", Kind: Income, Description: "", Amount: Money{Cents: 1}, Date: NewDate(2025, 1, 1)},
		{FamilyID: "f", Kind: Income, Description: "a", Amount: Money{Cents: 0}, Date: NewDate(2025, 1, 1)},
		{FamilyID: "f", Kind: "x", Description: "a", Amount: Money{Cents: 1}, Date: NewDate(2025, 1, 1)},
		{FamilyID: "", Kind: Income, Description: "a", Amount: Money{Cents: 1}, Date: NewDate(2025, 1, 1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestAlertLevels(t *testing.T) {
	threshold := MustMoney("500.00")
	cases := []struct {
		balance Money
		want    AlertLevel
	}{
		{Money{Cents: -1}, AlertDanger},
		{Money{Cents: 0}, AlertWarning},
		{MustMoney("499.99"), AlertWarning},
		{MustMoney("500.00"), AlertOK},
	}
	for _, tc := range cases {
		if got := ClassifyBalance(tc.balance, threshold); got != tc.want {
			t.Errorf("ClassifyBalance(%s) = %s, want %s", tc.balance, got, tc.want)
		}
	}

	if Worst(AlertOK, AlertDanger) != AlertDanger || Worst(AlertWarning, AlertOK) != AlertWarning {
		t.Fatalf("Worst ordering broken")
	}
	b, _ := json.Marshal(AlertWarning)
	if string(b) != `"warning"` {
		t.Fatalf("got %s", b)
	}
}
