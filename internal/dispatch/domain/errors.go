package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrNoCandidates is returned when ranking produces an empty candidate
	// list; callers recover by moving the job to NO_VENDORS_AVAILABLE
	ErrNoCandidates = errors.New("no candidate vendors available")

	// ErrStaleResponse is returned when an accept/decline arrives for an
	// offer that is already resolved or held by a different vendor
	ErrStaleResponse = errors.New("stale response for resolved offer")

	// ErrVendorNotConnected is returned when a push targets a vendor with no
	// live channel; the message is dropped, never queued
	ErrVendorNotConnected = errors.New("vendor not connected")

	// ErrInvalidMessage is returned when an inbound frame fails validation
	ErrInvalidMessage = errors.New("invalid message")

	// ErrIllegalTransition is returned for a job status transition the state
	// machine does not define
	ErrIllegalTransition = errors.New("illegal status transition")
)

// RetryableError wraps transient errors that should trigger another attempt
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
