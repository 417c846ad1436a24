package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, NewJSONResponse().Body(map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}))
}

// handleReady checks that the store answers within a few seconds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "not_configured"}
	resp := NewJSONResponse()
	status := "ready"

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			checks["store"] = "failed"
			status = "not_ready"
			resp.Status(http.StatusServiceUnavailable).RetryAfter(s.retryAfter)
		} else {
			checks["store"] = "ok"
		}
	}

	s.write(w, r, resp.Body(map[string]any{"status": status, "checks": checks}))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	parser := NewRequestBodyParser(w, r)
	if err := parser.Parse(); err != nil {
		s.write(w, r, BadRequestError("request body must be JSON or form-encoded"))
		return
	}
	params, err := ParseGenerateParams(parser, s.today())
	if err != nil {
		s.write(w, r, BadRequestError(err.Error()))
		return
	}

	result, err := s.generator.Generate(ctx, params.FamilyID, params.AsOf)
	// Whatever was inserted before a failure is visible to forecasts now.
	if dropped := s.forecaster.Invalidate(params.FamilyID); dropped > 0 {
		logger.DebugContext(ctx, "Forecast cache invalidated", log.FieldFamilyID, params.FamilyID, "entries", dropped)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Generate failed",
			log.FieldFamilyID, params.FamilyID,
			log.FieldAsOf, params.AsOf.String(),
			log.FieldError, err)
		s.write(w, r, InternalServerError("generate failed"))
		return
	}

	s.write(w, r, NewJSONResponse().Body(result))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	req, err := ParseForecastParams(r.URL.Query(), mux.Vars(r)["familyId"], s.today(), s.defaultHorizon)
	if err != nil {
		s.write(w, r, BadRequestError(err.Error()))
		return
	}

	days, err := s.forecaster.Forecast(r.Context(), req)
	if err != nil {
		s.writeForecastError(w, r, req, err)
		return
	}
	s.write(w, r, NewJSONResponse().Body(days))
}

func (s *Server) handleMonthlyForecast(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req, err := ParseForecastParams(query, mux.Vars(r)["familyId"], s.today(), s.defaultHorizon)
	if err != nil {
		s.write(w, r, BadRequestError(err.Error()))
		return
	}
	months, err := ParseMonths(query)
	if err != nil {
		s.write(w, r, BadRequestError(err.Error()))
		return
	}

	summaries, err := s.forecaster.MonthlyForecast(r.Context(), req, months)
	if err != nil {
		s.writeForecastError(w, r, req, err)
		return
	}
	s.write(w, r, NewJSONResponse().Body(summaries))
}

// writeForecastError maps engine errors: bad horizon is the caller's fault,
// store failures are retryable, anything else is a 500.
func (s *Server) writeForecastError(w http.ResponseWriter, r *http.Request, req services.ForecastRequest, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidHorizon):
		s.write(w, r, BadRequestError(err.Error()))
	case errors.Is(err, services.ErrForecastUnavailable):
		log.FromContext(r.Context()).WarnContext(r.Context(), "Forecast unavailable",
			log.FieldFamilyID, req.FamilyID,
			log.FieldError, err)
		s.write(w, r, ServiceUnavailableError("forecast temporarily unavailable", s.retryAfter))
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Forecast failed",
			log.FieldFamilyID, req.FamilyID,
			log.FieldError, err)
		s.write(w, r, InternalServerError("forecast failed"))
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldPath, r.URL.Path)
	s.write(w, r, TooManyRequestsError(s.limiter.RetryAfter()))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, NotFoundError("route not found"))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, MethodNotAllowedError("method not allowed"))
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, b *JSONResponseBuilder) {
	if err := b.Write(w); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to write response", log.FieldError, err)
	}
}
