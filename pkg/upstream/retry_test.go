package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/geoedge/ip-timezone-api/internal/testutil"
)

func TestFetchWithRetry_ImmediateSuccess(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	client := newTestClient(mock.URL())

	payload, err := client.FetchWithRetry(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("FetchWithRetry() error = %v", err)
	}
	if payload.City != "Mountain View" {
		t.Errorf("City = %q, want Mountain View", payload.City)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestFetchWithRetry_SucceedsAfterRateLimit(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetSequence("/8.8.8.8/json/",
		testutil.NewRateLimitResponse(""),
		testutil.NewOKResponse(testutil.SamplePayload),
	)

	client := newTestClient(mock.URL())

	payload, err := client.FetchWithRetry(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("FetchWithRetry() error = %v", err)
	}
	if payload.IP != "8.8.8.8" {
		t.Errorf("IP = %q, want 8.8.8.8", payload.IP)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("request count = %d, want exactly 2", got)
	}
}

func TestFetchWithRetry_Exhaustion(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetResponse("/8.8.8.8/json/", testutil.NewRateLimitResponse(""))

	client := newTestClient(mock.URL())

	_, err := client.FetchWithRetry(context.Background(), "8.8.8.8")
	if err == nil {
		t.Fatal("FetchWithRetry() expected error, got nil")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
	// MaxRetries 2 means 3 total attempts.
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
}

func TestFetchWithRetry_NoRetryOnServerError(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetResponse("/8.8.8.8/json/", testutil.NewServerErrorResponse())

	client := newTestClient(mock.URL())

	_, err := client.FetchWithRetry(context.Background(), "8.8.8.8")
	if err == nil {
		t.Fatal("FetchWithRetry() expected error, got nil")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("500 response reported as rate limited")
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("request count = %d, want 1 (no retry on 5xx)", got)
	}
}

func TestFetchWithRetry_NoRetryOnNetworkError(t *testing.T) {
	mock := testutil.NewMockProvider()
	url := mock.URL()
	mock.Close()

	client := newTestClient(url)

	_, err := client.FetchWithRetry(context.Background(), "8.8.8.8")
	if err == nil {
		t.Fatal("FetchWithRetry() expected error, got nil")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("transport failure reported as rate limited")
	}
}

func TestFetchWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	mock.SetResponse("/8.8.8.8/json/", testutil.NewRateLimitResponse(""))

	client := New(Config{
		BaseURL:        mock.URL(),
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		HTTPClient:     &http.Client{Timeout: 2 * time.Second},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchWithRetry(ctx, "8.8.8.8")
	if err == nil {
		t.Fatal("FetchWithRetry() expected error, got nil")
	}
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("request count = %d, want 1 (cancelled in first backoff)", got)
	}
}

func TestBackoff(t *testing.T) {
	client := New(Config{
		BaseURL:        "http://unused",
		InitialBackoff: 500 * time.Millisecond,
		MaxRetryAfter:  10 * time.Second,
	})

	tests := []struct {
		name       string
		retryAfter time.Duration
		attempt    int
		want       time.Duration
	}{
		{
			name:    "exponential first attempt",
			attempt: 0,
			want:    500 * time.Millisecond,
		},
		{
			name:    "exponential second attempt",
			attempt: 1,
			want:    1 * time.Second,
		},
		{
			name:    "exponential third attempt",
			attempt: 2,
			want:    2 * time.Second,
		},
		{
			name:       "retry-after honored",
			retryAfter: 3 * time.Second,
			attempt:    0,
			want:       3 * time.Second,
		},
		{
			name:       "retry-after capped",
			retryAfter: 60 * time.Second,
			attempt:    0,
			want:       10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provErr := &ProviderError{
				StatusCode: http.StatusTooManyRequests,
				RetryAfter: tt.retryAfter,
			}
			if got := client.backoff(provErr, tt.attempt); got != tt.want {
				t.Errorf("backoff() = %v, want %v", got, tt.want)
			}
		})
	}
}
