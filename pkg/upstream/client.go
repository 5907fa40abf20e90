// Package upstream provides the HTTP client for the third-party
// geolocation provider, with bounded retry and backoff on rate limiting.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoedge/ip-timezone-api/pkg/logging"
)

// DefaultBaseURL is the ipapi.co-compatible provider endpoint.
const DefaultBaseURL = "https://ipapi.co"

// Payload is the provider's raw response for one lookup.
type Payload struct {
	IP          string  `json:"ip"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	UTCOffset   string  `json:"utc_offset"`
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the provider API.
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// MaxRetries is the number of retries after the initial attempt,
	// applied only to rate-limit responses.
	MaxRetries int

	// InitialBackoff is the base delay for exponential backoff when the
	// 429 response carries no Retry-After header.
	InitialBackoff time.Duration

	// MaxRetryAfter caps a provider-supplied Retry-After duration.
	MaxRetryAfter time.Duration

	// HTTPClient performs the requests. Its Timeout bounds each single
	// attempt; callers with stricter needs (the health probe) pass their
	// own context deadline instead.
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      "ip-timezone-api/1.0",
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxRetryAfter:  10 * time.Second,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Client queries the geolocation provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a provider client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logging.NewLogger("upstream"),
	}
}

// Fetch issues a single request for the given lookup key. An empty key
// queries the bare endpoint, which resolves the server's own public IP.
// Any non-success response or transport failure returns a *ProviderError.
func (c *Client) Fetch(ctx context.Context, lookupKey string) (*Payload, error) {
	url := c.cfg.BaseURL + "/json/"
	if lookupKey != "" {
		url = c.cfg.BaseURL + "/" + lookupKey + "/json/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	providerRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		providerRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Error().Err(err).Str("lookup_key", lookupKey).Msg("Provider request failed")
		return nil, &ProviderError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	providerRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn().
			Str("lookup_key", lookupKey).
			Dur("retry_after", retryAfter).
			Msg("Provider rate limited request")
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			RetryAfter: retryAfter,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Str("lookup_key", lookupKey).
			Int("status", resp.StatusCode).
			Msg("Provider request error")
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    "decode response",
			Err:        err,
		}
	}

	return &payload, nil
}

// parseRetryAfter reads a Retry-After header value, either delay-seconds or
// an HTTP date. Returns 0 if the header is absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
