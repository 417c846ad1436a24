package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/cache"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/middleware/ratelimit"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/services"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/storage/memory"
)

type testEnv struct {
	store  *memory.Store
	server *Server
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()
	store := memory.New()
	store.PutRecurring(core.RecurringDefinition{
		ID: "rent", FamilyID: "fam-1", Kind: core.Expense, Description: "Rent",
		Amount: core.MustMoney("1200.00"), Frequency: core.Monthly, DayOfMonth: 31,
		StartDate: core.NewDate(2024, 1, 1), Active: true,
	})
	store.PutRecurring(core.RecurringDefinition{
		ID: "salary", FamilyID: "fam-1", Kind: core.Income, Description: "Salary",
		Amount: core.MustMoney("3000.00"), Frequency: core.Monthly, DayOfMonth: 5,
		StartDate: core.NewDate(2024, 1, 1), Active: true,
	})
	store.PutInstallment(core.InstallmentPlan{
		ID: "tv", FamilyID: "fam-1", Description: "TV", Amount: core.MustMoney("250.00"),
		TotalInstallments: 3, CurrentInstallment: 1, StartDate: core.NewDate(2024, 2, 15), Active: true,
	})

	discard := log.Discard()
	scheduler := services.NewScheduler()
	gen := services.NewOccurrenceGenerator(store, store, scheduler, services.WithGeneratorLogger(discard))
	engine := services.NewForecastEngine(store, store.Installments(), scheduler, services.NewInstallmentProjector(10),
		services.WithForecastLogger(discard))
	fc := services.NewCachedForecaster(engine, cache.NewLRUCache[[]core.ForecastDay](16, time.Hour))

	srv := NewServer(Options{
		Today:     func() core.Date { return core.NewDate(2024, 2, 29) },
		Logger:    discard,
		RateLimit: ratelimit.Config{RequestsPerWindow: limit, Window: time.Minute},
	}, gen, fc, pingerFunc(func(context.Context) error { return nil }))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{store: store, server: srv}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 10)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing request id", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

func TestReady_StoreDown(t *testing.T) {
	env := newTestEnv(t, 10)
	env.server.pinger = pingerFunc(func(context.Context) error { return errors.New("disk gone") })

	rr := env.do(http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	body := decode[map[string]any](t, rr)
	if body["status"] != "not_ready" {
		t.Errorf("body = %v", body)
	}
}

func TestGenerate_LeapDayScenarioIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 10)

	rr := env.do(http.MethodPost, "/generate", `{"familyId":"fam-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	first := decode[services.GenerationResult](t, rr)
	// Today is 2024-02-29: rent (day 31 clamps to 29) and salary (day 5, late) are both due.
	if first.GeneratedCount != 2 || first.SkippedCount != 0 || len(first.Errors) != 0 {
		t.Fatalf("first run = %+v", first)
	}

	rr = env.do(http.MethodPost, "/generate", `{"familyId":"fam-1","asOf":"2024-02-29"}`)
	second := decode[services.GenerationResult](t, rr)
	if second.GeneratedCount != 0 || second.SkippedCount != 2 {
		t.Fatalf("second run = %+v", second)
	}
	if !strings.Contains(rr.Body.String(), `"errors":[]`) {
		t.Errorf("errors should encode as an empty array: %s", rr.Body.String())
	}

	txs, err := env.store.ListTransactions(context.Background(), "fam-1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("stored %d transactions, want 2", len(txs))
	}
	for _, tx := range txs {
		if tx.RecurringID == "rent" && tx.Date.String() != "2024-02-29" {
			t.Errorf("rent dated %s, want 2024-02-29", tx.Date)
		}
	}
}

func TestGenerate_BadRequests(t *testing.T) {
	env := newTestEnv(t, 10)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"familyId":`, "request body must be JSON or form-encoded"},
		{"missing family", `{"asOf":"2024-02-29"}`, "familyId is required"},
		{"bad date", `{"familyId":"fam-1","asOf":"2024-13-01"}`, "asOf must be a date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/generate", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", rr.Code)
			}
			if body := decode[errorBody](t, rr); !strings.Contains(body.Error, tt.want) {
				t.Errorf("error = %q, want %q", body.Error, tt.want)
			}
		})
	}
}

func TestGenerate_MethodAndRateLimit(t *testing.T) {
	env := newTestEnv(t, 2)

	if rr := env.do(http.MethodGet, "/generate", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /generate status=%d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/nowhere", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown route status=%d", rr.Code)
	}

	for i := 0; i < 2; i++ {
		if rr := env.do(http.MethodPost, "/generate", `{"familyId":"fam-2"}`); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := env.do(http.MethodPost, "/generate", `{"familyId":"fam-2"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
}

func TestForecast_Daily(t *testing.T) {
	env := newTestEnv(t, 10)

	rr := env.do(http.MethodGet, "/forecast?familyId=fam-1&asOf=2024-03-01&horizonDays=10&openingBalance=100", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	days := decode[[]map[string]any](t, rr)
	if len(days) != 10 {
		t.Fatalf("len = %d", len(days))
	}
	if days[0]["date"] != "2024-03-01" || days[0]["alertLevel"] != "warning" {
		t.Errorf("day 1 = %v", days[0])
	}
	if days[4]["income"] != "3000.00" || days[4]["balance"] != "3100.00" {
		t.Errorf("day 5 = %v", days[4])
	}
	if days[9]["installments"] != "250.00" || days[9]["balance"] != "2850.00" {
		t.Errorf("day 10 = %v", days[9])
	}
}

func TestForecast_IsDeterministic(t *testing.T) {
	env := newTestEnv(t, 10)
	target := "/families/fam-1/forecast?asOf=2024-03-01&horizonDays=45"

	first := env.do(http.MethodGet, target, "").Body.Bytes()
	env.server.forecaster.Invalidate("fam-1")
	second := env.do(http.MethodGet, target, "").Body.Bytes()
	if !bytes.Equal(first, second) {
		t.Error("identical requests produced different bodies")
	}
}

func TestForecast_Errors(t *testing.T) {
	env := newTestEnv(t, 10)

	tests := []struct {
		target string
		status int
	}{
		{"/forecast", http.StatusBadRequest},
		{"/forecast?familyId=fam-1&horizonDays=abc", http.StatusBadRequest},
		{fmt.Sprintf("/forecast?familyId=fam-1&horizonDays=%d", services.MaxHorizonDays+1), http.StatusBadRequest},
		{"/forecast/monthly?familyId=fam-1&months=0", http.StatusBadRequest},
		{"/forecast/monthly?familyId=fam-1&months=24", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := env.do(http.MethodGet, tt.target, "")
		if rr.Code != tt.status {
			t.Errorf("%s status=%d, want %d", tt.target, rr.Code, tt.status)
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Errorf("%s content type = %q", tt.target, rr.Header().Get("Content-Type"))
		}
	}
}

func TestForecast_StoreFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t, 10)
	env.server.forecaster = failingForecaster{err: fmt.Errorf("%w: list plans: disk gone", services.ErrForecastUnavailable)}

	rr := env.do(http.MethodGet, "/forecast?familyId=fam-1", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	if body := decode[errorBody](t, rr); strings.Contains(body.Error, "disk") {
		t.Errorf("internal detail leaked: %q", body.Error)
	}

	env.server.forecaster = failingForecaster{err: errors.New("boom")}
	if rr := env.do(http.MethodGet, "/forecast/monthly?familyId=fam-1", ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("status=%d, want 500", rr.Code)
	}
}

func TestMonthlyForecast(t *testing.T) {
	env := newTestEnv(t, 10)

	rr := env.do(http.MethodGet, "/forecast/monthly?familyId=fam-1&asOf=2024-02-01&months=3&openingBalance=0", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	months := decode[[]map[string]any](t, rr)
	if len(months) != 3 {
		t.Fatalf("len = %d", len(months))
	}
	wantMonths := []string{"2024-02", "2024-03", "2024-04"}
	for i, m := range months {
		if m["month"] != wantMonths[i] {
			t.Errorf("month[%d] = %v", i, m["month"])
		}
	}
	// Installments 1..3 fall on the 10th of February, March and April.
	if months[0]["installments"] != "250.00" || months[1]["installments"] != "250.00" || months[2]["installments"] != "250.00" {
		t.Errorf("installments = %v / %v / %v", months[0]["installments"], months[1]["installments"], months[2]["installments"])
	}
	if months[0]["balance"] != "1550.00" {
		t.Errorf("february balance = %v", months[0]["balance"])
	}
}

func TestGenerate_InvalidatesForecastCache(t *testing.T) {
	env := newTestEnv(t, 10)
	target := "/forecast?familyId=fam-1&asOf=2024-03-01&horizonDays=5"

	before := env.do(http.MethodGet, target, "").Body.String()
	env.store.PutRecurring(core.RecurringDefinition{
		ID: "bonus", FamilyID: "fam-1", Kind: core.Income, Description: "Bonus",
		Amount: core.MustMoney("10.00"), Frequency: core.Monthly, DayOfMonth: 2,
		StartDate: core.NewDate(2024, 1, 1), Active: true,
	})
	if cached := env.do(http.MethodGet, target, "").Body.String(); cached != before {
		t.Fatal("second read should be served from cache")
	}

	env.do(http.MethodPost, "/generate", `{"familyId":"fam-1"}`)
	after := env.do(http.MethodGet, target, "").Body.String()
	if after == before || !strings.Contains(after, "bonus") {
		t.Error("generate should invalidate the family's cached forecasts")
	}
}

type failingForecaster struct{ err error }

func (f failingForecaster) Forecast(context.Context, services.ForecastRequest) ([]core.ForecastDay, error) {
	return nil, f.err
}

func (f failingForecaster) MonthlyForecast(context.Context, services.ForecastRequest, int) ([]core.MonthlySummary, error) {
	return nil, f.err
}

func (failingForecaster) Invalidate(string) int { return 0 }
func (failingForecaster) MaxHorizon() int       { return services.MaxHorizonDays }
