package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Monthly  Frequency = "monthly"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Yearly   Frequency = "yearly"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

type (
	// Kind tells whether a recurring definition adds or removes money.
	Kind string

	// Frequency is the closed set of recurrence variants. Only Monthly is
	// scheduled today; the others are accepted and never fire.
	Frequency string

	// Date is a calendar date normalized to midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	RecurringDefinition struct {
		ID              string    `json:"id"`
		FamilyID        string    `json:"familyId"`
		Kind            Kind      `json:"kind"`
		Description     string    `json:"description"`
		Amount          Money     `json:"amount"`
		Frequency       Frequency `json:"frequency"`
		DayOfMonth      int       `json:"dayOfMonth"`
		StartDate       Date      `json:"startDate"`
		EndDate         Date      `json:"endDate"` // zero means open-ended
		CategoryID      string    `json:"categoryId,omitempty"`
		Active          bool      `json:"active"`
		LastGeneratedAt time.Time `json:"lastGeneratedAt,omitempty"` // advisory only
	}

	InstallmentPlan struct {
		ID                 string `json:"id"`
		FamilyID           string `json:"familyId"`
		Description        string `json:"description"`
		StartDate          Date   `json:"startDate"`
		Amount             Money  `json:"amount"` // per installment
		TotalInstallments  int    `json:"totalInstallments"`
		CurrentInstallment int    `json:"currentInstallment"`
		CategoryID         string `json:"categoryId,omitempty"`
		Active             bool   `json:"active"`
	}

	// Transaction is a materialized money movement. Transactions produced by
	// the occurrence generator carry RecurringID, Period and AutoGenerated.
	Transaction struct {
		ID            string    `json:"id"`
		FamilyID      string    `json:"familyId"`
		RecurringID   string    `json:"recurringId,omitempty"`
		Kind          Kind      `json:"kind"`
		Description   string    `json:"description"`
		Amount        Money     `json:"amount"`
		Date          Date      `json:"date"`
		Period        string    `json:"period,omitempty"`
		CategoryID    string    `json:"categoryId,omitempty"`
		AutoGenerated bool      `json:"autoGenerated"`
		CreatedAt     time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDayOfMonth  = errors.New("day of month must be between 1 and 31")
	ErrInvalidKind        = errors.New("invalid kind")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyFamily        = errors.New("empty family id")
	ErrInvalidInstallment = errors.New("invalid installment range")

	// ErrDuplicateOccurrence is returned by transaction stores when an
	// occurrence for the same (recurring definition, period) already exists.
	ErrDuplicateOccurrence = errors.New("occurrence already exists for period")
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Valid reports whether f is a known frequency, scheduled or reserved.
func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Weekly, Biweekly, Yearly:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsNegative() bool { return m.Cents < 0 }

func (m Money) LessThan(o Money) bool { return m.Cents < o.Cents }

// ActiveOn reports whether date falls inside the definition's [start, end] window.
func (rd RecurringDefinition) ActiveOn(date Date) bool {
	if date.Before(rd.StartDate) {
		return false
	}
	if !rd.EndDate.IsEmpty() && date.After(rd.EndDate) {
		return false
	}
	return true
}

func (rd RecurringDefinition) Validate() error {
	if strings.TrimSpace(rd.FamilyID) == "" {
		return ErrEmptyFamily
	}
	if err := rd.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !rd.EndDate.IsEmpty() {
		if err := rd.EndDate.Validate(); err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
		if rd.EndDate.Before(rd.StartDate) {
			return errors.New("end date must be after start date")
		}
	}
	if !rd.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, rd.Kind)
	}
	if !rd.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, rd.Frequency)
	}
	if rd.DayOfMonth < 1 || rd.DayOfMonth > 31 {
		return ErrInvalidDayOfMonth
	}
	if len(strings.TrimSpace(rd.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rd.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return rd.Amount.Validate()
}

func (p InstallmentPlan) Validate() error {
	if strings.TrimSpace(p.FamilyID) == "" {
		return ErrEmptyFamily
	}
	if err := p.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if p.TotalInstallments < 1 || p.CurrentInstallment < 1 || p.CurrentInstallment > p.TotalInstallments {
		return fmt.Errorf("%w: %d/%d", ErrInvalidInstallment, p.CurrentInstallment, p.TotalInstallments)
	}
	return p.Amount.Validate()
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.FamilyID) == "" {
		return ErrEmptyFamily
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	return t.Amount.Validate()
}
