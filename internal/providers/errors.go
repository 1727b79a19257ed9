package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ValidationError marks missing or invalid required input. It is fatal: the
// caller aborts the execution instead of retrying.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Reason)
}

// ProviderError marks an external capability failure. Retryable errors go
// through the gateway's retry/backoff loop before degrading to a fallback
// payload.
type ProviderError struct {
	Provider  string
	Op        string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TimeoutError is the ProviderError variant raised when a provider call
// exceeds its deadline. It forces a neutral default and status TIMEOUT in
// the caller.
type TimeoutError struct {
	Provider string
	Op       string
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s: %s timed out after %s", e.Provider, e.Op, e.Elapsed)
}

// ParseError marks a malformed structured response from a provider. It is
// recoverable via exactly one deterministic fallback, never a re-invocation
// loop.
type ParseError struct {
	Source string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Source, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewProviderError wraps err as a retryable provider failure. Context
// deadline errors are converted to TimeoutError so callers can distinguish
// TIMEOUT from plain failures.
func NewProviderError(provider, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: provider, Op: op}
	}
	return &ProviderError{Provider: provider, Op: op, Retryable: true, Err: err}
}

// IsProviderFault reports whether err is a provider-side failure (including
// timeouts), i.e. recoverable by retry then fallback rather than fatal.
func IsProviderFault(err error) bool {
	var pe *ProviderError
	var te *TimeoutError
	return errors.As(err, &pe) || errors.As(err, &te)
}

// IsRetryable reports whether the gateway should retry err. Timeouts and
// unclassified failures are treated as transient; validation and parse
// failures, and provider errors explicitly marked non-retryable, are not.
func IsRetryable(err error) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return false
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// IsTimeout reports whether err carries a provider timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}
