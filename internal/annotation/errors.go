package annotation

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation = errors.New("validation error")
	ErrMapping    = errors.New("mapping error")
	ErrRemote     = errors.New("remote error")
)

// ValidationError is returned before any network call when input is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// MappingError is returned when a response envelope cannot be unwrapped.
type MappingError struct {
	Reason string
	cause  error
}

// NewMappingError builds a MappingError, optionally wrapping the decode failure.
func NewMappingError(reason string, cause error) *MappingError {
	return &MappingError{Reason: reason, cause: cause}
}

func (e *MappingError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("mapping: %s: %v", e.Reason, e.cause)
	}
	return "mapping: " + e.Reason
}

func (e *MappingError) Unwrap() error { return e.cause }

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// RemoteError covers non-success HTTP outcomes and transport failures.
// Status is 0 when no HTTP response was received.
type RemoteError struct {
	Status  int
	Message string
	cause   error
}

// NewRemoteError builds a RemoteError, optionally wrapping the transport failure.
func NewRemoteError(status int, message string, cause error) *RemoteError {
	return &RemoteError{Status: status, Message: message, cause: cause}
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return "remote: " + e.Message
	}
	return fmt.Sprintf("remote: [%d] %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.cause }

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }
