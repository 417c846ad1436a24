// Package http exposes the generate and forecast operations as a JSON API.
//
// This file implements a small builder for JSON responses so that every
// handler writes the same content type, error shape and retry headers.

package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// errorBody is the payload of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// RetryAfter sets the Retry-After header in seconds.
func (b *JSONResponseBuilder) RetryAfter(seconds int) *JSONResponseBuilder {
	return b.Header("Retry-After", strconv.Itoa(seconds))
}

// Body sets the value to be encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write encodes the payload before touching w, so an encoding failure can
// still be reported as a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) error {
	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return err
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, err = w.Write(append(body, '\n'))
	return err
}

// ErrorResponse creates a response with body {"error": message}.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func MethodNotAllowedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, message)
}

func TooManyRequestsError(retryAfter int) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").RetryAfter(retryAfter)
}

// ServiceUnavailableError marks a failure the caller may retry.
func ServiceUnavailableError(message string, retryAfter int) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message).RetryAfter(retryAfter)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
