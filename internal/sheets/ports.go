package sheets

import (
	"context"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

// Ports for outbound adapters.
type (
	// ForecastExporter publishes a family's monthly projection to a
	// spreadsheet-like destination.
	ForecastExporter interface {
		// ExportMonthly appends one row per summary and returns a reference to
		// the written range.
		ExportMonthly(ctx context.Context, familyID string, asOf core.Date, months []core.MonthlySummary) (rowRef string, err error)
	}
)

// Header is the column layout written by every exporter.
var Header = []string{"Family", "As of", "Month", "Income", "Expenses", "Installments", "Balance", "Alert"}

// MonthlyRows renders summaries as sheet rows in Header order. Amounts are
// fixed two-place decimal strings so the sheet never sees float rounding.
func MonthlyRows(familyID string, asOf core.Date, months []core.MonthlySummary) [][]any {
	rows := make([][]any, 0, len(months))
	for _, m := range months {
		rows = append(rows, []any{
			familyID,
			asOf.String(),
			m.Month,
			m.Income.String(),
			m.Expenses.String(),
			m.Installments.String(),
			m.Balance.String(),
			m.Alert.String(),
		})
	}
	return rows
}
