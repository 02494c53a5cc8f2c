package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeInit       = "INIT_ERROR"
	ErrCodeAuth       = "AUTH_ERROR"
	ErrCodeNotOpen    = "NOT_OPEN"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeState      = "STATE_ERROR"
	ErrCodeThrottled  = "THROTTLED"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeUnknown    = "UNKNOWN"
)

// Sentinel errors. Every error returned by a session or service matches exactly
// one of these with errors.Is.
var (
	ErrInitialization     = errors.New("engine runtime unavailable")
	ErrAuthentication     = errors.New("wrong passphrase or corrupted store")
	ErrNotOpen            = errors.New("store is not open")
	ErrValidation         = errors.New("invalid input")
	ErrStorage            = errors.New("blob store failure")
	ErrStoreNotConfigured = errors.New("no store configured")
	ErrAlreadyOpen        = errors.New("store is already open")
	ErrTooManyAttempts    = errors.New("too many failed unlock attempts")
	ErrNotFound           = errors.New("record not found")
)

var codeBySentinel = []struct {
	err  error
	code string
}{
	{ErrInitialization, ErrCodeInit},
	{ErrAuthentication, ErrCodeAuth},
	{ErrNotOpen, ErrCodeNotOpen},
	{ErrValidation, ErrCodeValidation},
	{ErrStorage, ErrCodeStorage},
	{ErrStoreNotConfigured, ErrCodeConfig},
	{ErrAlreadyOpen, ErrCodeState},
	{ErrTooManyAttempts, ErrCodeThrottled},
	{ErrNotFound, ErrCodeNotFound},
}

// Code maps an error to its error code. A nil error has no code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var se *StoreError
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	for _, c := range codeBySentinel {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ErrCodeUnknown
}

// StoreError describes a failed operation on one encrypted store.
type StoreError struct {
	Code  string
	Store string
	Op    string
	Err   error
}

// NewStoreError wraps err with the sentinel matching code.
func NewStoreError(code, store, op string, err error) *StoreError {
	return &StoreError{Code: code, Store: store, Op: op, Err: err}
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s [%s]", e.Store, e.Op, e.Code)
	}
	return fmt.Sprintf("%s %s [%s]: %v", e.Store, e.Op, e.Code, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's code, so callers
// can match on kind even when the wrapped cause is a lower level error.
func (e *StoreError) Is(target error) bool {
	for _, c := range codeBySentinel {
		if c.code == e.Code && c.err == target {
			return true
		}
	}
	return false
}

// ValidationError represents malformed input to a record operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
