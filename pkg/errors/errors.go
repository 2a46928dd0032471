package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the domain error type. Every error that reaches a handler is
// normalised into one of these; Code and Status drive the wire response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a fresh Error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds an Error around an underlying cause.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Moderation verdict errors. Hard policy violations are final and
	// carry the specific reason for collaborator messaging.
	ErrContentBlocked   = New("CONTENT_BLOCKED", http.StatusUnprocessableEntity, "content violates platform policy")
	ErrContentRejected  = New("CONTENT_REJECTED", http.StatusUnprocessableEntity, "content rejected by moderation")
	ErrProtectedContent = New("PROTECTED_CONTENT", http.StatusUnprocessableEntity, "content matches protected material reserved by its author")

	// Lock precondition errors. Rejected synchronously, never retried.
	ErrAlreadyLocked   = New("ALREADY_LOCKED", http.StatusConflict, "submission is already locked")
	ErrNotOriginalWork = New("NOT_ORIGINAL_WORK", http.StatusPreconditionFailed, "submission does not claim original work")
	ErrNotPublishable  = New("NOT_PUBLISHABLE", http.StatusPreconditionFailed, "submission moderation status does not permit locking")
	ErrNotLocked       = New("NOT_LOCKED", http.StatusPreconditionFailed, "submission has no certificate")
)

// FromError normalises any error into an *Error. Unknown errors map to
// ErrInternal so their details never leak to clients.
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

// Clone copies a sentinel error, optionally overriding its message. Handlers
// use this to attach context without mutating the shared sentinel.
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
