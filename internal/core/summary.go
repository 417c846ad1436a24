package core

import "encoding/json"

// AlertLevel classifies a projected balance.
type AlertLevel int

const (
	AlertOK AlertLevel = iota
	AlertWarning
	AlertDanger
)

// EventType tags the source of a forecast contribution.
type EventType string

const (
	EventIncome      EventType = "income"
	EventExpense     EventType = "expense"
	EventInstallment EventType = "installment"
)

func (a AlertLevel) String() string {
	switch a {
	case AlertWarning:
		return "warning"
	case AlertDanger:
		return "danger"
	default:
		return "ok"
	}
}

// Severity orders levels: ok=0, warning=1, danger=2.
func (a AlertLevel) Severity() int { return int(a) }

// Worst returns the more severe of a and b (danger > warning > ok).
func Worst(a, b AlertLevel) AlertLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ClassifyBalance maps a cumulative balance to an alert level.
func ClassifyBalance(balance, lowThreshold Money) AlertLevel {
	switch {
	case balance.IsNegative():
		return AlertDanger
	case balance.LessThan(lowThreshold):
		return AlertWarning
	default:
		return AlertOK
	}
}

func (a AlertLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// ForecastEvent is one contribution to a projected day.
type ForecastEvent struct {
	Type              EventType `json:"type"`
	Description       string    `json:"description"`
	Amount            Money     `json:"amount"`
	CategoryID        string    `json:"categoryId,omitempty"`
	SourceID          string    `json:"sourceId"`
	InstallmentNumber int       `json:"installmentNumber,omitempty"`
}

// ForecastDay is a computed, never persisted, projection for one date.
type ForecastDay struct {
	Date         Date            `json:"date"`
	Income       Money           `json:"income"`
	Expenses     Money           `json:"expenses"`
	Installments Money           `json:"installments"`
	Net          Money           `json:"net"`
	Balance      Money           `json:"balance"`
	Alert        AlertLevel      `json:"alertLevel"`
	Events       []ForecastEvent `json:"events"`
}

// MonthlySummary rolls ForecastDays up to a calendar month.
type MonthlySummary struct {
	Month        string     `json:"month"` // YYYY-MM
	Income       Money      `json:"income"`
	Expenses     Money      `json:"expenses"`
	Installments Money      `json:"installments"`
	Balance      Money      `json:"balance"`
	Alert        AlertLevel `json:"alertLevel"`
}
