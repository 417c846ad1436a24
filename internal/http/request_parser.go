// Package http exposes the generate and forecast operations as a JSON API.
//
// This file implements parsing and validation of request parameters. Every
// parse function returns a *paramError whose message is safe to show to the
// caller.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/services"
)

const (
	maxBodyBytes  = 64 << 10
	maxFamilyID   = 128
	defaultMonths = 3
)

// paramError is a client mistake, reported as 400.
type paramError struct {
	msg string
}

func (e *paramError) Error() string { return e.msg }

func badParam(format string, args ...any) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

// GenerateParams is the validated input of POST /generate.
type GenerateParams struct {
	FamilyID string
	AsOf     core.Date
}

// RequestBodyParser reads a JSON or form-encoded body once.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads at most maxBodyBytes from r.Body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal([]byte(trimmed), &p.jsonData)
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseGenerateParams validates a generate body. asOf defaults to today.
func ParseGenerateParams(p *RequestBodyParser, today core.Date) (GenerateParams, error) {
	familyID, err := parseFamilyID(p.Get("familyId"))
	if err != nil {
		return GenerateParams{}, err
	}
	asOf, err := parseOptionalDate("asOf", p.Get("asOf"), today)
	if err != nil {
		return GenerateParams{}, err
	}
	return GenerateParams{FamilyID: familyID, AsOf: asOf}, nil
}

// ParseForecastParams builds a forecast request from query parameters.
// familyID overrides the familyId query value when non-empty.
func ParseForecastParams(query url.Values, familyID string, today core.Date, defaultHorizon int) (services.ForecastRequest, error) {
	if familyID == "" {
		familyID = query.Get("familyId")
	}
	id, err := parseFamilyID(familyID)
	if err != nil {
		return services.ForecastRequest{}, err
	}

	asOf, err := parseOptionalDate("asOf", query.Get("asOf"), today)
	if err != nil {
		return services.ForecastRequest{}, err
	}

	horizon, err := parsePositiveInt("horizonDays", query.Get("horizonDays"), defaultHorizon)
	if err != nil {
		return services.ForecastRequest{}, err
	}

	opening := core.Money{}
	if v := strings.TrimSpace(query.Get("openingBalance")); v != "" {
		cents, err := core.ParseSignedDecimalToCents(v)
		if err != nil {
			return services.ForecastRequest{}, badParam("openingBalance must be a decimal amount, got %q", v)
		}
		opening = core.Money{Cents: cents}
	}

	return services.ForecastRequest{
		FamilyID:       id,
		AsOf:           asOf,
		HorizonDays:    horizon,
		OpeningBalance: opening,
	}, nil
}

// ParseMonths reads the months query parameter, defaulting to defaultMonths.
func ParseMonths(query url.Values) (int, error) {
	return parsePositiveInt("months", query.Get("months"), defaultMonths)
}

func parseFamilyID(raw string) (string, error) {
	id := sanitizeInput(raw)
	if id == "" {
		return "", badParam("familyId is required")
	}
	if len(id) > maxFamilyID {
		return "", badParam("familyId must be at most %d characters", maxFamilyID)
	}
	return id, nil
}

func parseOptionalDate(name, raw string, fallback core.Date) (core.Date, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fallback, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badParam("%s must be a date in YYYY-MM-DD format, got %q", name, v)
	}
	return d, nil
}

func parsePositiveInt(name, raw string, fallback int) (int, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, badParam("%s must be a positive integer, got %q", name, v)
	}
	return n, nil
}

// sanitizeInput trims and strips control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
