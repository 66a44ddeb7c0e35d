package embedder

import (
	"errors"
	"fmt"
)

// ProviderError is a failure reported by (or on the way to) an embedding
// provider. StatusCode 0 means the HTTP exchange itself failed (network
// error, timeout) before a status was received.
//
// The transient/terminal split drives retry behavior: rate limiting and
// server faults are worth retrying, a malformed request is not.
type ProviderError struct {
	// StatusCode is the HTTP status returned by the provider, or 0 for
	// transport-level failures.
	StatusCode int
	// Message is the provider's error message, or a transport error string.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("embedding provider unreachable: %s", e.Message)
	}
	return fmt.Sprintf("embedding provider returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying error for errors.Is / errors.As chains.
func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying: rate limiting
// (429), request timeout (408), server faults (5xx), or a transport failure.
// Everything else — notably 4xx validation errors — is terminal.
func (e *ProviderError) Transient() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 429 || e.StatusCode == 408:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsTransient reports whether err is (or wraps) a transient ProviderError.
// A non-ProviderError is treated as terminal so unknown failures surface
// instead of looping.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return false
}
