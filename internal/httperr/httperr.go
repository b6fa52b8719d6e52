// Package httperr defines the JSON error envelope used by every HTTP
// endpoint of the identity service.
package httperr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AppError is the standard application error carried up to the HTTP edge.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // cause, logged but never serialized
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New creates an AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// WithDetail returns a copy with an added detail so the base errors below
// are never mutated.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause returns a copy carrying the original error for logging.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// FromError converts any error into an AppError, defaulting to 500.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// Base errors.
var (
	ErrBadRequest         = New(http.StatusBadRequest, "bad_request", "The request is invalid.")
	ErrUnauthorized       = New(http.StatusUnauthorized, "unauthorized", "Authentication required.")
	ErrForbidden          = New(http.StatusForbidden, "forbidden", "Access denied.")
	ErrNotFound           = New(http.StatusNotFound, "not_found", "Resource not found.")
	ErrMethodNotAllowed   = New(http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
	ErrConflict           = New(http.StatusConflict, "conflict", "The resource already exists.")
	ErrGone               = New(http.StatusGone, "gone", "The resource is no longer available.")
	ErrTooManyRequests    = New(http.StatusTooManyRequests, "rate_limited", "Too many requests.")
	ErrInternal           = New(http.StatusInternalServerError, "internal_error", "An unexpected error occurred.")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "service_unavailable", "The service is temporarily unavailable.")
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError writes the JSON envelope for err, converting as needed.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}
