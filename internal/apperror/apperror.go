// Package apperror gives the core's (ok, error-message) result shape a
// typed error underneath it, so handlers can log.WithField("code", ...)
// instead of matching on raw strings.
package apperror

import (
	"errors"
	"fmt"
)

// AppError is a coded, optionally-wrapped error.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Error codes, following the taxonomy of spec.md §7.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeTransport   = "TRANSPORT_ERROR"
	CodeResource    = "RESOURCE_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"
	CodeFatal       = "FATAL_ERROR"
	CodeNotFound    = "NOT_FOUND"
)

// Result mirrors the source's (ok, optional<string>) pair. Most core
// operations return this instead of a bare error so the message text
// stays stable for callers that match on it (tests, sender replies).
type Result struct {
	OK      bool
	Message string
}

func Ok() Result { return Result{OK: true} }

func Fail(message string) Result { return Result{OK: false, Message: message} }

func FailErr(err error) Result {
	if err == nil {
		return Ok()
	}
	return Result{OK: false, Message: err.Error()}
}
