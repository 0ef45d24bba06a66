package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by every storefront package. AppError values wrap
// one of these so callers can branch with errors.Is.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
)

// kind ties a sentinel to its wire code and HTTP status.
type kind struct {
	sentinel error
	code     string
	status   int
}

// kinds is ordered by lookup priority for HTTPStatus.
var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
	{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
}

func kindOf(sentinel error) kind {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return k
		}
	}
	return kind{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError}
}

// AppError is an error that knows how it should be rendered over HTTP.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// newAppError builds an AppError for sentinel. A non-nil cause is joined to
// the sentinel so both match errors.Is.
func newAppError(sentinel error, message string, cause error) *AppError {
	k := kindOf(sentinel)
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: err}
}

// NotFound reports a missing resource, e.g. NotFound("cart item", "3").
func NotFound(resource, id string) *AppError {
	return newAppError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id), nil)
}

func InvalidInput(message string) *AppError {
	return newAppError(ErrInvalidInput, message, nil)
}

func Unauthorized(message string) *AppError {
	return newAppError(ErrUnauthorized, message, nil)
}

func Forbidden(message string) *AppError {
	return newAppError(ErrForbidden, message, nil)
}

func Conflict(message string) *AppError {
	return newAppError(ErrConflict, message, nil)
}

// ServiceUnavailable reports a downstream dependency that cannot currently
// take requests.
func ServiceUnavailable(message string, cause error) *AppError {
	return newAppError(ErrServiceUnavail, message, cause)
}

// Internal hides err behind a generic message. The cause stays reachable
// through errors.Is alongside ErrInternal.
func Internal(err error) *AppError {
	return newAppError(ErrInternal, "an internal error occurred", err)
}

// From returns the AppError in err's chain, or builds one from the first
// sentinel err wraps. Only invalid-input errors keep their own text; other
// plain errors get a generic message so internals do not leak to clients.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return newAppError(ErrInvalidInput, err.Error(), err)
	case errors.Is(err, ErrServiceUnavail):
		return newAppError(ErrServiceUnavail, "a downstream service is unavailable", err)
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) && k.sentinel != ErrInternal {
			return newAppError(k.sentinel, k.sentinel.Error(), err)
		}
	}
	return Internal(err)
}

// HTTPStatus returns the HTTP status code for err: the AppError's own status
// if there is one, else the status of the first sentinel it wraps, else 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
