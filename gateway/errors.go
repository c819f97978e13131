package gateway

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrServiceUnavailable represents a backend signaling degradation
	ErrServiceUnavailable = errors.New("backend service unavailable")
	// ErrUnreachable represents a failure to reach the backend at all.
	// Never retried, callers fail fast instead of looping on a dead
	// network.
	ErrUnreachable = errors.New("failed to fetch")
)

// ValidationError represents a backend response missing a required
// field. Programmer/contract error, never retried.
type ValidationError struct {
	Slice string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("malformed %s response: missing required field %q", e.Slice, e.Field)
}

// ParameterError represents a missing required call parameter.
// Programmer error, fails immediately without touching the network.
type ParameterError struct {
	Name string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("required parameter %q missing", e.Name)
}

// TransientError represents a connectivity or backend fault worth
// retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %s", e.Op, e.Err)
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	_, ok := errors.Cause(err).(*TransientError)
	return ok
}

// IsValidation reports whether err is a malformed-response error.
func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// IsParameter reports whether err is a missing-parameter error.
func IsParameter(err error) bool {
	_, ok := errors.Cause(err).(*ParameterError)
	return ok
}
