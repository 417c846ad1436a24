package services

import "github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"

// DefaultInstallmentDueDay is the typical credit card due date.
const DefaultInstallmentDueDay = 10

// InstallmentProjector decides which installment of a plan falls in a month.
type InstallmentProjector struct {
	dueDay int
}

// NewInstallmentProjector returns a projector paying installments on dueDay,
// clamped per month. Values outside 1..31 fall back to the default.
func NewInstallmentProjector(dueDay int) *InstallmentProjector {
	if dueDay < 1 || dueDay > 31 {
		dueDay = DefaultInstallmentDueDay
	}
	return &InstallmentProjector{dueDay: dueDay}
}

// DueDay returns the configured installment due day.
func (p *InstallmentProjector) DueDay() int { return p.dueDay }

// InstallmentNumberFor returns the installment number payable in targetMonth
// (only its year and month are used) and whether it lies within
// [CurrentInstallment, TotalInstallments].
func (p *InstallmentProjector) InstallmentNumberFor(plan core.InstallmentPlan, targetMonth core.Date) (int, bool) {
	n := core.MonthsBetween(plan.StartDate, targetMonth) + 1
	return n, n >= plan.CurrentInstallment && n <= plan.TotalInstallments
}

// DueOn reports whether an installment of plan is payable on date.
func (p *InstallmentProjector) DueOn(plan core.InstallmentPlan, date core.Date) (int, bool) {
	if date.Day() != core.ClampDay(p.dueDay, date.Year(), date.Month()) {
		return 0, false
	}
	n, ok := p.InstallmentNumberFor(plan, date)
	if !ok {
		return 0, false
	}
	return n, true
}
