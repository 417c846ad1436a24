package core

import (
	"fmt"
	"time"
)

// PeriodLayout formats the monthly generation period.
const PeriodLayout = "2006-01"

// DaysInMonth returns the number of days of month (1-12) in year.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay returns day limited to the valid range of the given month, so a
// "31st" lands on the 28th/29th/30th in shorter months.
func ClampDay(day, year, month int) int {
	if day < 1 {
		return 1
	}
	if last := DaysInMonth(year, month); day > last {
		return last
	}
	return day
}

// AddDays returns d shifted by n calendar days.
func AddDays(d Date, n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// MonthsBetween returns the signed number of calendar months from a to b,
// ignoring the day of month.
func MonthsBetween(a, b Date) int {
	return (b.Year()-a.Year())*12 + (b.Month() - a.Month())
}

// MonthStart returns the first day of d's month.
func MonthStart(d Date) Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// MonthEnd returns the last day of d's month.
func MonthEnd(d Date) Date {
	return NewDate(d.Year(), d.Month(), DaysInMonth(d.Year(), d.Month()))
}

// AddMonths moves to the first day of the month n months away from d.
func AddMonths(d Date, n int) Date {
	return NewDate(d.Year(), d.Month()+n, 1)
}

// PeriodKey is the "YYYY-MM" label of d's month.
func PeriodKey(d Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year(), d.Month())
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b Date) int {
	return int(b.Time.Sub(a.Time).Hours() / 24)
}
