package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeMalformed     ErrorType = "MALFORMED"
	ErrorTypeSlotOccupied  ErrorType = "SLOT_OCCUPIED"
	ErrorTypeDuplicateEdge ErrorType = "DUPLICATE_EDGE"
	ErrorTypeTransient     ErrorType = "TRANSIENT"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeInternal      ErrorType = "INTERNAL"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewMalformed reports a payload that could not be interpreted.
func NewMalformed(message string, err error) error {
	return &AppError{Type: ErrorTypeMalformed, Message: message, Err: err}
}

// NewSlotOccupied reports an attempt to fill a taken left/right slot.
func NewSlotOccupied(message string) error {
	return &AppError{Type: ErrorTypeSlotOccupied, Message: message}
}

// NewDuplicateEdge reports an edge whose (source,target) pair already exists.
func NewDuplicateEdge(message string) error {
	return &AppError{Type: ErrorTypeDuplicateEdge, Message: message}
}

// NewTransient wraps a collaborator or network failure.
func NewTransient(message string, err error) error {
	return &AppError{Type: ErrorTypeTransient, Message: message, Err: err}
}

// NewConflict reports an action refused because of the current state.
func NewConflict(message string) error {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// TypeOf returns the ErrorType carried by err, or INTERNAL for foreign errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Message returns the human-readable part of an AppError, or err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func is(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return is(err, ErrorTypeValidation) }

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool { return is(err, ErrorTypeNotFound) }

func IsMalformed(err error) bool     { return is(err, ErrorTypeMalformed) }
func IsSlotOccupied(err error) bool  { return is(err, ErrorTypeSlotOccupied) }
func IsDuplicateEdge(err error) bool { return is(err, ErrorTypeDuplicateEdge) }
func IsTransient(err error) bool     { return is(err, ErrorTypeTransient) }
func IsConflict(err error) bool      { return is(err, ErrorTypeConflict) }

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool { return is(err, ErrorTypeInternal) }

// HTTPStatus maps an error onto the status code the view host answers with.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeValidation, ErrorTypeMalformed:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeSlotOccupied, ErrorTypeDuplicateEdge, ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
