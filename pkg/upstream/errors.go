package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Tagged errors callers branch on with errors.Is.
var (
	// ErrRateLimited is returned when the provider kept answering 429
	// through every retry. The HTTP layer maps it to 503 with a
	// Retry-After hint.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrContextCancelled is returned when the context expires during a
	// retry backoff sleep.
	ErrContextCancelled = errors.New("context cancelled")
)

// ProviderError describes a single failed provider attempt.
type ProviderError struct {
	// StatusCode is the HTTP status, 0 for transport failures.
	StatusCode int

	// Message is the provider's status line or a short description.
	Message string

	// RetryAfter is the provider-supplied wait hint on 429 responses,
	// 0 when absent.
	RetryAfter time.Duration

	// Err is the underlying transport or decode error, if any.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		if e.StatusCode > 0 {
			return fmt.Sprintf("provider error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether the attempt failed with HTTP 429, the only
// failure class that is retried.
func (e *ProviderError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
