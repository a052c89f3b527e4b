package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	// a sentinel parent only classifies; its message adds nothing
	if _, ok := e.Err.(*DomainError); ok {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Sentinel errors. Compare with errors.Is; attach context with Wrap.
var (
	ErrNotFound           = NewDomainError("NOT_FOUND", "resource not found", http.StatusNotFound, nil)
	ErrUserNotFound       = NewDomainError("USER_NOT_FOUND", "user not found in the system", http.StatusNotFound, nil)
	ErrNotAuthorized      = NewDomainError("NOT_AUTHORIZED", "administrator privileges required", http.StatusForbidden, nil)
	ErrNotAuthenticated   = NewDomainError("NOT_AUTHENTICATED", "no active session", http.StatusUnauthorized, nil)
	ErrAlreadyExists      = NewDomainError("ALREADY_EXISTS", "resource already exists", http.StatusConflict, nil)
	ErrInvalidCredentials = NewDomainError("INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized, nil)
	ErrTransportFailure   = NewDomainError("TRANSPORT_FAILURE", "transport failure", http.StatusBadGateway, nil)
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// Wrap derives an error from a sentinel with a more specific message.
// errors.Is(Wrap(ErrX, "..."), ErrX) holds.
func Wrap(sentinel *DomainError, message string) error {
	return &DomainError{
		Code:       sentinel.Code,
		Message:    message,
		HTTPStatus: sentinel.HTTPStatus,
		Err:        sentinel,
	}
}

// WrapCause derives an error from a sentinel and records the underlying cause.
func WrapCause(sentinel *DomainError, cause error) error {
	return &DomainError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		HTTPStatus: sentinel.HTTPStatus,
		Err:        &causeChain{sentinel: sentinel, cause: cause},
	}
}

// causeChain lets errors.Is match both the sentinel and the underlying cause.
type causeChain struct {
	sentinel *DomainError
	cause    error
}

func (c *causeChain) Error() string   { return c.cause.Error() }
func (c *causeChain) Unwrap() []error { return []error{c.sentinel, c.cause} }

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       ErrNotFound.Code,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
		Err:        ErrNotFound,
	}
}

func NewUnauthorized(message string) error {
	return Wrap(ErrNotAuthenticated, message)
}

func NewForbidden(message string) error {
	return Wrap(ErrNotAuthorized, message)
}

func NewConflict(message string, details map[string]any) error {
	return &DomainError{
		Code:       ErrAlreadyExists.Code,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Details:    details,
		Err:        ErrAlreadyExists,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
