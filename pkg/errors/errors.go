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

// Is reports whether target carries the same code, so clones and wraps of a
// predefined error still match it with errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
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
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Swap workflow outcomes. Validation errors carry no retry hint, state errors
// mean someone already acted, integrity errors mean the approval unit rolled back.
var (
	ErrInvalidReason         = New("INVALID_REASON", http.StatusBadRequest, "reason is too short")
	ErrCourseNotFound        = New("COURSE_NOT_FOUND", http.StatusNotFound, "course not found")
	ErrNotEnrolledInOriginal = New("NOT_ENROLLED_IN_ORIGINAL", http.StatusUnprocessableEntity, "student is not enrolled in the original course")
	ErrTargetNotSwapable     = New("TARGET_NOT_SWAPABLE", http.StatusUnprocessableEntity, "target course does not accept swaps")
	ErrTargetFull            = New("TARGET_FULL", http.StatusConflict, "target course is full")
	ErrAlreadyInTarget       = New("ALREADY_ENROLLED_IN_TARGET", http.StatusUnprocessableEntity, "student is already enrolled in the target course")

	ErrDuplicateRequest = New("DUPLICATE_REQUEST", http.StatusConflict, "an identical swap request is already pending")
	ErrAlreadyResolved  = New("ALREADY_RESOLVED", http.StatusConflict, "swap request already resolved")
	ErrNotPending       = New("NOT_PENDING", http.StatusConflict, "swap request is not pending")
	ErrNotOwner         = New("NOT_OWNER", http.StatusForbidden, "swap request belongs to another student")

	ErrCapacityExceeded = New("CAPACITY_EXCEEDED", http.StatusConflict, "course capacity exceeded")
	ErrUnderflow        = New("UNDERFLOW", http.StatusConflict, "course enrollment cannot drop below zero")
	ErrNotEnrolled      = New("NOT_ENROLLED", http.StatusConflict, "student no longer enrolled in the original course")
	ErrAlreadyEnrolled  = New("ALREADY_ENROLLED", http.StatusConflict, "student already enrolled in the target course")

	ErrRequestNotFound = New("REQUEST_NOT_FOUND", http.StatusNotFound, "swap request not found")
)

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

// WrapAs wraps err under the code and status of a predefined error.
func WrapAs(base *Error, err error, message string) *Error {
	if base == nil {
		base = ErrInternal
	}
	if message == "" {
		message = base.Message
	}
	return Wrap(err, base.Code, base.Status, message)
}
