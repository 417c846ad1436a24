// Package services provides the recurring and installment projection engine.
//
// This file implements the Strategy Pattern for recurrence dueness. Each
// frequency has its own checker; frequencies without a registered checker are
// never due, so reserved values (weekly, biweekly, yearly) are accepted by
// validation but produce no occurrences until a checker is added.

package services

import (
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

// DuenessChecker is the strategy interface for a single frequency.
type DuenessChecker interface {
	// IsDue reports whether def produces an occurrence on target. The
	// start/end window has already been checked by the Scheduler.
	IsDue(def core.RecurringDefinition, target core.Date) bool
	// DueDateInPeriod returns the occurrence date of the period containing ref.
	DueDateInPeriod(def core.RecurringDefinition, ref core.Date) core.Date
	// Period returns the label of the period containing d.
	Period(d core.Date) string
}

// MonthlyChecker fires once a month on the definition's day, clamped to the
// month length so that day 31 lands on 28/29/30 in short months.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(def core.RecurringDefinition, target core.Date) bool {
	return target.Day() == core.ClampDay(def.DayOfMonth, target.Year(), target.Month())
}

func (MonthlyChecker) DueDateInPeriod(def core.RecurringDefinition, ref core.Date) core.Date {
	return core.NewDate(ref.Year(), ref.Month(), core.ClampDay(def.DayOfMonth, ref.Year(), ref.Month()))
}

func (MonthlyChecker) Period(d core.Date) string {
	return core.PeriodKey(d)
}

// Scheduler dispatches dueness decisions to per-frequency strategies.
// The generator and the forecast engine share one Scheduler so they never
// disagree on when an occurrence happens.
type Scheduler struct {
	strategies map[core.Frequency]DuenessChecker
}

// NewScheduler returns a Scheduler with the monthly strategy registered.
func NewScheduler() *Scheduler {
	return &Scheduler{
		strategies: map[core.Frequency]DuenessChecker{
			core.Monthly: MonthlyChecker{},
		},
	}
}

// Register adds or replaces the checker for a frequency.
func (s *Scheduler) Register(frequency core.Frequency, checker DuenessChecker) {
	s.strategies[frequency] = checker
}

// IsDue returns false outside the definition's [start, end] window and for
// frequencies without a registered strategy.
func (s *Scheduler) IsDue(def core.RecurringDefinition, target core.Date) bool {
	if !def.ActiveOn(target) {
		return false
	}
	checker, ok := s.strategies[def.Frequency]
	if !ok {
		return false
	}
	return checker.IsDue(def, target)
}

// DueDateInPeriod returns the occurrence date of the period containing ref.
// ok is false for unscheduled frequencies.
func (s *Scheduler) DueDateInPeriod(def core.RecurringDefinition, ref core.Date) (core.Date, bool) {
	checker, ok := s.strategies[def.Frequency]
	if !ok {
		return core.Date{}, false
	}
	return checker.DueDateInPeriod(def, ref), true
}

// Period returns the idempotency period label for def at d.
func (s *Scheduler) Period(def core.RecurringDefinition, d core.Date) string {
	if checker, ok := s.strategies[def.Frequency]; ok {
		return checker.Period(d)
	}
	return core.PeriodKey(d)
}
