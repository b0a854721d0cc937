package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound            = errors.New("requested resource not found")
	ErrUnauthorized        = errors.New("unauthorized access")
	ErrForbidden           = errors.New("forbidden access")
	ErrBadRequest          = errors.New("bad request")
	ErrConflict            = errors.New("resource conflict") // e.g. completing an already evaluated submission
	ErrInternalServer      = errors.New("internal server error")
	ErrValidation          = errors.New("validation failed")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrServiceUnavailable  = errors.New("service unavailable") // e.g. sandbox or model down
	ErrTimeout             = errors.New("operation timed out")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// ValidationError rejects caller input before any external call is made.
// Err usually holds ozzo-validation's validation.Errors with per-field reasons.
type ValidationError struct {
	Err error
}

func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

type ExecutionErrorKind string

const (
	ExecutionTransient ExecutionErrorKind = "transient"
	ExecutionFatal     ExecutionErrorKind = "fatal"
)

// ExecutionError is a sandbox failure. Transient failures are worth one retry.
type ExecutionError struct {
	Kind       ExecutionErrorKind
	StatusCode int // HTTP status from the sandbox, 0 for transport errors
	Err        error
}

func (e *ExecutionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sandbox %s failure (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sandbox %s failure: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsTransient reports whether err is an ExecutionError worth retrying.
func IsTransient(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.Kind == ExecutionTransient
}

// GuardrailViolation is raised by the hint post-filter. It never leaves the
// mentor engine; callers get fallback guidance instead.
type GuardrailViolation struct {
	Rule   string
	Detail string
}

func (v *GuardrailViolation) Error() string {
	if v.Detail == "" {
		return "guardrail violation: " + v.Rule
	}
	return "guardrail violation: " + v.Rule + " (" + v.Detail + ")"
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) || errors.Is(err, ErrUnsupportedLanguage) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrTooManyRequests) {
		return http.StatusTooManyRequests
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, ErrTimeout) {
		return http.StatusGatewayTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
