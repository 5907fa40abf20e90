package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geoedge/ip-timezone-api/pkg/cache"
	"github.com/geoedge/ip-timezone-api/pkg/geo"
	"github.com/geoedge/ip-timezone-api/pkg/health"
	"github.com/geoedge/ip-timezone-api/pkg/logging"
	"github.com/geoedge/ip-timezone-api/pkg/upstream"
)

// retryAfterHint is the Retry-After value sent with 503 responses.
const retryAfterHint = "30"

var serverStarted = time.Now()

func newRouter(resolver *geo.Resolver, checker *health.Checker, store *cache.Store[geo.Entry]) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/health", livenessHandler)
	router.Get("/health/ready", readinessHandler(checker))
	router.Get("/api/timezone", timezoneHandler(resolver))
	router.Get("/api/cache/stats", cacheStatsHandler(store))
	router.Post("/api/cache/flush", cacheFlushHandler(store))
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// timezoneHandler resolves the caller's IP to geolocation and timezone
// data. Errors never leak detail: the caller sees 200, 503 with a
// Retry-After hint, or a generic 500.
func timezoneHandler(resolver *geo.Resolver) http.HandlerFunc {
	logger := logging.NewLogger("http")

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		ip := clientIP(r)

		result, err := resolver.Resolve(ctx, ip)
		if err != nil {
			switch {
			case errors.Is(err, upstream.ErrRateLimited),
				errors.Is(err, upstream.ErrContextCancelled),
				errors.Is(err, context.DeadlineExceeded):
				w.Header().Set("Retry-After", retryAfterHint)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error": "Service temporarily unavailable, please retry",
				})
			default:
				logger.Error().Err(err).Str("ip", ip).Msg("Timezone lookup failed")
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "Failed to fetch timezone information",
				})
			}
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// livenessHandler answers as long as the process is serving.
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(serverStarted).Seconds(),
	})
}

// readinessHandler reports the composite provider + cache health.
func readinessHandler(checker *health.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := checker.Check(r.Context())

		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func cacheStatsHandler(store *cache.Store[geo.Entry]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Stats())
	}
}

func cacheFlushHandler(store *cache.Store[geo.Entry]) http.HandlerFunc {
	logger := logging.NewLogger("http")

	return func(w http.ResponseWriter, r *http.Request) {
		store.Flush()
		logger.Info().Msg("Cache flushed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
	}
}

// clientIP extracts the caller's address. The RealIP middleware has
// already folded X-Forwarded-For / X-Real-IP into RemoteAddr; direct
// connections still carry a port to strip.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.NewLogger("http")
		logger.Error().Err(err).Msg("Cannot write response")
	}
}
