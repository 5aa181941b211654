package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Scheduling error codes. InvalidInput and ScheduleExists are caller errors,
// SlotUnavailable is an expected transient race, WaitlistFull requires manual
// intervention, InvalidConfiguration is fatal at startup.
const (
	ErrInvalidInput ErrorCode = iota + 1000
	ErrInvalidConfiguration
	ErrSlotUnavailable
	ErrScheduleExists
	ErrWaitlistFull
	ErrNotFound
	ErrInternal
)

// Error constructors
func InvalidInput(message string, err error) *AppError {
	return &AppError{Code: ErrInvalidInput, Message: message, Err: err}
}

func InvalidConfiguration(message string, err error) *AppError {
	return &AppError{Code: ErrInvalidConfiguration, Message: message, Err: err}
}

func SlotUnavailable(message string) *AppError {
	return &AppError{Code: ErrSlotUnavailable, Message: message}
}

func ScheduleExists(message string) *AppError {
	return &AppError{Code: ErrScheduleExists, Message: message}
}

func WaitlistFull(message string) *AppError {
	return &AppError{Code: ErrWaitlistFull, Message: message}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", resource), Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal error", Err: err}
}

// CodeOf extracts the domain code from an error chain, ErrInternal when none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
