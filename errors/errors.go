// Package errors provides standardized error handling for pipeline
// components: classification into transient/invalid/fatal, standard error
// variables, and helpers for consistent wrapping across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes.
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to malformed input; the offending
	// message is dropped at the earliest stage.
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that stop the pipeline
	// until it is externally restarted.
	ErrorFatal
)

// String returns the string representation of ErrorClass.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions.
var (
	// Connection errors
	ErrNotConnected        = errors.New("not connected to broker")
	ErrConnectionLost      = errors.New("connection lost")
	ErrConnectTimeout      = errors.New("connect timeout")
	ErrReconnectsExhausted = errors.New("reconnect attempts exhausted")
	ErrSubscriptionFailed  = errors.New("subscription failed")
	ErrStoreUnavailable    = errors.New("store unavailable")

	// Ingestion errors
	ErrInvalidTopic   = errors.New("topic does not match expected shape")
	ErrInvalidPayload = errors.New("payload is not a valid telemetry record")
	ErrSensorNotFound = errors.New("sensor not found")
	ErrQueueFull      = errors.New("ingestion queue full")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Fan-out errors
	ErrUnauthorized = errors.New("credential rejected")
)

// ClassifiedError wraps an error with its classification.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and may be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrConnectTimeout) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrQueueFull) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable", "busy"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error should stop the pipeline.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrReconnectsExhausted) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to malformed input.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidTopic) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrSensorNotFound)
}

// Classify returns the error class for an error. Unknown errors default to
// transient so callers err on the side of retrying.
func Classify(err error) ErrorClass {
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}
	return ErrorTransient
}

// Wrap creates a standardized error with context following the pattern
// "component.method: action failed: %w".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func newClassified(class ErrorClass, err error, component, operation string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   err.Error(),
		Component: component,
		Operation: operation,
	}
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorTransient, Wrap(err, component, method, action), component, method)
}

// WrapFatal wraps an error as fatal with context.
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorFatal, Wrap(err, component, method, action), component, method)
}

// WrapInvalid wraps an error as invalid with context.
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return newClassified(ErrorInvalid, Wrap(err, component, method, action), component, method)
}
