// Package memory keeps exported forecast rows in process.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	ports "github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/sheets"
)

var _ ports.ForecastExporter = (*Exporter)(nil)

// Exporter appends rows to an in-memory sheet.
type Exporter struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Exporter {
	return &Exporter{}
}

// ExportMonthly appends one row per summary and returns a synthetic
// reference in the form "mem:<first>-<last>".
func (e *Exporter) ExportMonthly(_ context.Context, familyID string, asOf core.Date, months []core.MonthlySummary) (string, error) {
	if len(months) == 0 {
		return "", nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	first := len(e.rows) + 1
	e.rows = append(e.rows, ports.MonthlyRows(familyID, asOf, months)...)
	return fmt.Sprintf("mem:%d-%d", first, len(e.rows)), nil
}

// Rows returns a copy of everything exported so far.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]any, len(e.rows))
	copy(out, e.rows)
	return out
}

// RowsFor returns the exported rows of one family.
func (e *Exporter) RowsFor(familyID string) [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out [][]any
	for _, r := range e.rows {
		if len(r) > 0 && r[0] == familyID {
			out = append(out, r)
		}
	}
	return out
}
