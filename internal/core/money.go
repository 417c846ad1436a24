// Package core provides money parsing and handling utilities.
//
// Amounts are carried as integer cents inside the engine. Decimal strings only
// appear at the edges (configuration, HTTP, JSON), where they are converted
// with shopspring/decimal so no float ever touches a balance.
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// maxCents bounds parsed values so that later summation cannot overflow int64
// for any realistic horizon.
var maxCents = decimal.NewFromInt((1<<63 - 1) / 1000)

// ParseDecimalToCents converts a positive decimal string to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two places. Returns ErrInvalidAmount for invalid formats, signed
// values or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	cents, err := ParseSignedDecimalToCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseSignedDecimalToCents is ParseDecimalToCents for values that may be zero
// or negative, such as an opening balance.
func ParseSignedDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Abs().GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return d.Round(2).Shift(2).IntPart(), nil
}

// MustMoney parses a decimal string and panics on failure. Intended for
// constants and tests.
func MustMoney(s string) Money {
	cents, err := ParseSignedDecimalToCents(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid money literal %q", s))
	}
	return Money{Cents: cents}
}

// Decimal returns the amount as a decimal in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two decimal places, e.g. "-12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes money as a fixed two-place decimal string so output is
// byte-stable across runs.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (m *Money) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	cents, err := ParseSignedDecimalToCents(raw)
	if err != nil {
		return fmt.Errorf("parse money %s: %w", string(b), err)
	}
	m.Cents = cents
	return nil
}
