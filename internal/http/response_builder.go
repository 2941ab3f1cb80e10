// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses and the
// mapping from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetwatch/internal/core"
	"budgetwatch/internal/filter"
	applog "budgetwatch/internal/log"
)

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

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Envelope wraps data as {"success": true, "data": ...}.
func (b *JSONResponseBuilder) Envelope(data any) *JSONResponseBuilder {
	b.payload = envelope{Success: true, Data: data}
	return b
}

// Write sends the built response. A nil payload writes no body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorResponse creates a standard {"success": false, "message": ...} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(envelope{Success: false, Message: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// StatusForError maps domain errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrDuplicateBudget):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidYear),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidBudget),
		errors.Is(err, filter.ErrInvalidRange):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with the mapped status. Server errors are logged
// and replaced by a generic message carrying the request ID.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	if status < http.StatusInternalServerError {
		ErrorResponse(status, err.Error()).Write(w)
		return
	}

	ctx := r.Context()
	applog.FromContext(ctx).ErrorContext(ctx, "Request failed",
		applog.FieldPath, r.URL.Path,
		applog.FieldError, err.Error())
	NewJSONResponse().
		Status(status).
		Data(envelope{Success: false, Message: "internal error", RequestID: applog.RequestID(ctx)}).
		Write(w)
}
