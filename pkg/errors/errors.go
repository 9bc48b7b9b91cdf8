package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation            = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized          = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInvalidToken          = New("INVALID_TOKEN", http.StatusUnauthorized, "invalid token")
	ErrInvalidCredentials    = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrForbidden             = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrEmailNotVerified      = New("EMAIL_NOT_VERIFIED", http.StatusForbidden, "email address has not been verified")
	ErrNotFound              = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUserNotFound          = New("USER_NOT_FOUND", http.StatusNotFound, "user not found")
	ErrInvalidState          = New("INVALID_STATE", http.StatusBadRequest, "invalid state transition")
	ErrInvalidEmailToken     = New("INVALID_TOKEN", http.StatusBadRequest, "invalid verification token")
	ErrInvalidOrExpiredToken = New("INVALID_OR_EXPIRED_TOKEN", http.StatusBadRequest, "invalid or expired token")
	ErrDuplicateUser         = New("DUPLICATE_USER", http.StatusConflict, "username or email already registered")
	ErrConflict              = New("CONFLICT", http.StatusConflict, "conflict")
	ErrTooManyRequests       = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests")
	ErrUpstream              = New("UPSTREAM_ERROR", http.StatusInternalServerError, "upstream service failed")
	ErrInternal              = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrCacheMiss is returned by cache repositories when a key is absent.
	ErrCacheMiss = errors.New("cache miss")
)

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == target.Code && e.Status == target.Status
	}
	return false
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
