package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrValidation     = errors.New("validation failed")
	ErrInternalServer = errors.New("internal server error")

	// OTP lifecycle errors, surfaced distinctly so the client can decide
	// between prompting a resend and prompting re-entry
	ErrOtpNotFound          = errors.New("no active verification code")
	ErrOtpInvalid           = errors.New("verification code is incorrect")
	ErrOtpExpired           = errors.New("verification code has expired")
	ErrOtpAttemptsExhausted = errors.New("verification attempts exhausted")

	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidTransition signals a programming error: a backward or
	// skipping submission status change
	ErrInvalidTransition = errors.New("invalid submission status transition")

	ErrDeliveryFailed = errors.New("email delivery failed")
)

// RateLimitedError carries the time until the caller's window resets,
// so the HTTP layer can set a Retry-After header. It matches
// ErrRateLimited under errors.Is.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
