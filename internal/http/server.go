package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/middleware/ratelimit"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/middleware/security"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/middleware/trace"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/services"
)

// Generator materializes due occurrences for a family.
type Generator interface {
	Generate(ctx context.Context, familyID string, asOf core.Date) (services.GenerationResult, error)
}

// Forecaster projects cashflow. Invalidate drops anything cached for a family.
type Forecaster interface {
	Forecast(ctx context.Context, req services.ForecastRequest) ([]core.ForecastDay, error)
	MonthlyForecast(ctx context.Context, req services.ForecastRequest, months int) ([]core.MonthlySummary, error)
	Invalidate(familyID string) int
	MaxHorizon() int
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Zero values get defaults.
type Options struct {
	Addr               string
	DefaultHorizonDays int
	Today              func() core.Date
	Logger             *log.Logger
	RateLimit          ratelimit.Config
	// RetryAfter is sent with 503 responses, in seconds.
	RetryAfter int
}

type Server struct {
	http.Server
	generator  Generator
	forecaster Forecaster
	pinger     Pinger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger

	today          func() core.Date
	defaultHorizon int
	retryAfter     int
	started        time.Time
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// pinger may be nil, in which case /readyz only reports the process as up.
func NewServer(opts Options, gen Generator, fc Forecaster, pinger Pinger) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default(log.ComponentHTTP)
	}
	if opts.Today == nil {
		opts.Today = func() core.Date { return core.DateOf(time.Now().UTC()) }
	}
	if opts.DefaultHorizonDays <= 0 {
		opts.DefaultHorizonDays = services.DefaultHorizonDays
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 30
	}

	s := &Server{
		generator:      gen,
		forecaster:     fc,
		pinger:         pinger,
		limiter:        ratelimit.NewLimiter(opts.RateLimit),
		detector:       security.NewDetector(),
		logger:         opts.Logger,
		today:          opts.Today,
		defaultHorizon: opts.DefaultHorizonDays,
		retryAfter:     opts.RetryAfter,
		started:        time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ClientIP, log.NewStructuredLogger(s.logger))

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	generate := s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited)(http.HandlerFunc(s.handleGenerate))
	r.Handle("/generate", generate).Methods(http.MethodPost)

	r.HandleFunc("/forecast", s.handleForecast).Methods(http.MethodGet)
	r.HandleFunc("/forecast/monthly", s.handleMonthlyForecast).Methods(http.MethodGet)
	r.HandleFunc("/families/{familyId}/forecast", s.handleForecast).Methods(http.MethodGet)
	r.HandleFunc("/families/{familyId}/forecast/monthly", s.handleMonthlyForecast).Methods(http.MethodGet)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = r
	handler = headers.Middleware(handler)
	handler = s.flagSuspicious(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// flagSuspicious logs probe-like requests; they are still routed normally.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.detector.ClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
