package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geoedge/ip-timezone-api/pkg/cache"
	"github.com/geoedge/ip-timezone-api/pkg/geo"
	"github.com/geoedge/ip-timezone-api/pkg/health"
	"github.com/geoedge/ip-timezone-api/pkg/logging"
	"github.com/geoedge/ip-timezone-api/pkg/upstream"
)

const (
	// requestTimeout bounds one inbound lookup end to end, retry backoff
	// sleeps included.
	requestTimeout = 30 * time.Second

	// shutdownTimeout is how long in-flight requests get to finish on
	// SIGINT/SIGTERM before the server is torn down.
	shutdownTimeout = 30 * time.Second
)

type config struct {
	Port        string
	Env         string
	LogLevel    string
	ProviderURL string
	UserAgent   string
}

func loadConfig() config {
	return config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ProviderURL: getEnv("GEO_PROVIDER_URL", upstream.DefaultBaseURL),
		UserAgent:   getEnv("USER_AGENT", "ip-timezone-api/1.0"),
	}
}

func main() {
	cfg := loadConfig()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.Env == "development",
		Output: os.Stderr,
	})

	store := cache.New[geo.Entry](cache.DefaultConfig())

	clientCfg := upstream.DefaultConfig()
	clientCfg.BaseURL = cfg.ProviderURL
	clientCfg.UserAgent = cfg.UserAgent
	client := upstream.New(clientCfg)

	// The fallback decision is made once here, never re-read per request.
	allowFallback := cfg.Env == "development"
	resolver := geo.NewResolver(store, client, geo.Config{AllowFallback: allowFallback})
	checker := health.NewChecker(client, store)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(resolver, checker, store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	logger.Info().
		Str("port", cfg.Port).
		Str("env", cfg.Env).
		Str("provider", cfg.ProviderURL).
		Bool("fallback", allowFallback).
		Msg("Server started")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}

	// Entries would expire on their own; flushing leaves deterministic
	// stats in the shutdown logs.
	stats := store.Stats()
	store.Flush()
	store.Close()

	logger.Info().
		Uint64("hits", stats.Hits).
		Uint64("misses", stats.Misses).
		Float64("hit_rate", stats.HitRate).
		Msg("Server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
