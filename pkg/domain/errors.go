package domain

import (
	"context"
	"errors"
	"fmt"
)

// Quote lookup errors. None of them reach callers of the quote service;
// they classify why a tier was skipped.
var (
	// ErrTransportFailure is returned when the upstream could not be reached or timed out
	ErrTransportFailure = errors.New("upstream transport failure")
	// ErrUpstreamRejected is returned when the upstream answered with a non-success status
	ErrUpstreamRejected = errors.New("upstream rejected request")
	// ErrMalformedResponse is returned when a payload lacks a usable rate
	ErrMalformedResponse = errors.New("malformed quote payload")
	// ErrCacheUnavailable is returned when the cache backend fails (not a miss)
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrInvalidCurrencyCode is returned for codes that are not 3 to 5 letters
	ErrInvalidCurrencyCode = errors.New("invalid currency code")
	// ErrNoFallbackRate is returned at startup when no usable default rate is configured
	ErrNoFallbackRate = errors.New("fallback rate must be configured and positive")
)

// UpstreamError represents a failed call to the upstream quote source.
type UpstreamError struct {
	Provider   string
	Kind       error
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := "provider " + e.Provider + ": " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the taxonomy kind and the underlying cause to errors.Is/As.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ErrorKind returns the taxonomy label of err for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, ErrUpstreamRejected):
		return "upstream_rejected"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrCacheUnavailable):
		return "cache_unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "unknown"
	}
}
