package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// AppError is an error with a stable code and the HTTP status it renders with.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	// Fields maps request field names to their individual problems.
	Fields   map[string]string `json:"fields,omitempty"`
	Internal error             `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Internal == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Internal)
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches any AppError carrying the same code, so copies produced by
// WithInternal or WithFields still match their sentinel.
func (e *AppError) Is(target error) bool {
	if e == nil {
		return false
	}
	var other *AppError
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy carrying err as its cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithFields returns a copy with per-field problems attached.
func (e *AppError) WithFields(fields map[string]string) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Fields = maps.Clone(fields)
	return &cpy
}

var (
	ErrBadRequest      = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrUnauthorized    = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound        = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict        = New("CONFLICT", "Resource already exists", http.StatusConflict)
	ErrTooManyRequests = New("TOO_MANY_REQUESTS", "Too many requests, please try again later", http.StatusTooManyRequests)
	ErrInternalServer  = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrBadGateway      = New("TRANSPORT_ERROR", "Upstream service unavailable", http.StatusBadGateway)
	ErrUnavailable     = New("UNAVAILABLE", "Service unavailable", http.StatusServiceUnavailable)
)

// New builds an application error.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// FromError converts err into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest reports malformed input with message.
func NewBadRequest(message string) *AppError {
	return New(ErrBadRequest.Code, message, ErrBadRequest.StatusCode)
}

// NewValidation reports rejected form input with a summary and per-field details.
func NewValidation(message string, fields map[string]string) *AppError {
	return NewBadRequest(message).WithFields(fields)
}
