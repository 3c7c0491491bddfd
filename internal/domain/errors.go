package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Authentication errors. Never retried.
var (
	ErrInvalidAPIKey         = errors.New("invalid api key")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired session token")
)

// State and validation errors: caused by the client, surfaced with a reason, never retried.
var (
	ErrAlreadyConnected     = errors.New("integration already connected")
	ErrNoPendingConnection  = errors.New("no pending connection")
	ErrUnknownSubAccount    = errors.New("unknown sub-account")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidPlatform      = errors.New("invalid platform")
	ErrNotConnected         = errors.New("integration not connected")
	ErrNotFound             = errors.New("integration not found")
	ErrValidation           = errors.New("validation failed")
)

// Upstream errors
var (
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrRateLimitTimeout      = errors.New("rate limit wait exceeds maximum")
	ErrPixelCreationRejected = errors.New("web pixel creation rejected")
	ErrTransport             = errors.New("transport error")
	ErrPlatformUnauthorized  = errors.New("platform rejected credentials")
)

// RateLimitError is returned when the throttle budget could not be obtained.
// It matches ErrRateLimitExceeded or ErrRateLimitTimeout via errors.Is.
type RateLimitError struct {
	Timeout    bool
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s (retry after %s)", ErrRateLimitTimeout, e.RetryAfter)
	}
	return fmt.Sprintf("%s (retry after %s)", ErrRateLimitExceeded, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	if e.Timeout {
		return target == ErrRateLimitTimeout
	}
	return target == ErrRateLimitExceeded
}

// PixelCreationRejectedError carries the platform-reported user errors verbatim
type PixelCreationRejectedError struct {
	Messages []string
}

func (e *PixelCreationRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPixelCreationRejected, strings.Join(e.Messages, "; "))
}

func (e *PixelCreationRejectedError) Is(target error) bool {
	return target == ErrPixelCreationRejected
}

// TransportError wraps a network failure or a 5xx answer from a platform
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", ErrTransport, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ErrorKind groups errors by how callers should react to them
type ErrorKind string

const (
	KindAuth          ErrorKind = "AuthError"
	KindState         ErrorKind = "StateError"
	KindNotFound      ErrorKind = "NotFound"
	KindRateLimit     ErrorKind = "RateLimit"
	KindPixelRejected ErrorKind = "PixelCreationRejected"
	KindTransport     ErrorKind = "TransportError"
	KindInternal      ErrorKind = "Internal"
)

// KindOf classifies err into the error taxonomy
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAPIKey), errors.Is(err, ErrInvalidOrExpiredToken):
		return KindAuth
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyConnected),
		errors.Is(err, ErrNoPendingConnection),
		errors.Is(err, ErrUnknownSubAccount),
		errors.Is(err, ErrUnsupportedOperation),
		errors.Is(err, ErrInvalidPlatform),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrValidation):
		return KindState
	case errors.Is(err, ErrRateLimitExceeded), errors.Is(err, ErrRateLimitTimeout):
		return KindRateLimit
	case errors.Is(err, ErrPixelCreationRejected):
		return KindPixelRejected
	case errors.Is(err, ErrTransport), errors.Is(err, ErrPlatformUnauthorized):
		return KindTransport
	default:
		return KindInternal
	}
}
