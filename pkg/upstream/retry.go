package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FetchWithRetry wraps Fetch with bounded retry on rate-limit responses.
// Only 429 is retried; every other failure propagates immediately. Backoff
// honors the provider's Retry-After hint capped at MaxRetryAfter, falling
// back to exponential delay from InitialBackoff. Backoff sleeps count
// against ctx, not a separate budget.
func (c *Client) FetchWithRetry(ctx context.Context, lookupKey string) (*Payload, error) {
	maxAttempts := c.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		payload, err := c.Fetch(ctx, lookupKey)
		if err == nil {
			if attempt > 0 {
				c.logger.Info().
					Str("lookup_key", lookupKey).
					Int("attempt", attempt+1).
					Msg("Provider request succeeded after retry")
			}
			return payload, nil
		}

		var provErr *ProviderError
		if !errors.As(err, &provErr) || !provErr.IsRateLimit() {
			return nil, err
		}
		lastErr = err

		if attempt == maxAttempts-1 {
			break
		}

		delay := c.backoff(provErr, attempt)
		providerRetriesTotal.Inc()
		providerRetryBackoffSeconds.Observe(delay.Seconds())

		c.logger.Debug().
			Str("lookup_key", lookupKey).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying after rate limit")

		select {
		case <-ctx.Done():
			c.logger.Warn().
				Str("lookup_key", lookupKey).
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	providerRetryExhaustedTotal.Inc()
	c.logger.Warn().
		Str("lookup_key", lookupKey).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, maxAttempts, lastErr)
}

// backoff picks the wait before the next attempt: the provider's hint when
// present (capped), otherwise InitialBackoff doubled per attempt.
func (c *Client) backoff(provErr *ProviderError, attempt int) time.Duration {
	if provErr.RetryAfter > 0 {
		if provErr.RetryAfter > c.cfg.MaxRetryAfter {
			return c.cfg.MaxRetryAfter
		}
		return provErr.RetryAfter
	}
	return c.cfg.InitialBackoff * (1 << attempt)
}
