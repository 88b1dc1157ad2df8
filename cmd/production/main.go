// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main provides a production-ready streetlight deployment with
// metrics, health checks, circuit breaking and rate limiting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/streetlight/pkg/health"
	"github.com/absmach/streetlight/pkg/metrics"
	"github.com/absmach/streetlight/pkg/ratelimit"
	"github.com/absmach/streetlight/pkg/server/tcp"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Config holds the application configuration.
type Config struct {
	// Serving
	Mode          string        `env:"MODE"           envDefault:"echo"`
	Address       string        `env:"ADDRESS"        envDefault:":8080"`
	Target        string        `env:"TARGET"         envDefault:""`
	RootDir       string        `env:"ROOT_DIR"       envDefault:"."`
	EventInterval time.Duration `env:"EVENT_INTERVAL" envDefault:"1s"`
	MaxLineBytes  int           `env:"MAX_LINE_BYTES" envDefault:"8192"`
	DialTimeout   time.Duration `env:"DIAL_TIMEOUT"   envDefault:"10s"`

	// Observability
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`
	HealthPort  int    `env:"HEALTH_PORT"  envDefault:"8081"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"json"`

	// Resource Limits
	MaxGoroutines int `env:"MAX_GOROUTINES" envDefault:"50000"`

	// Circuit Breaker
	BreakerMaxFailures   int           `env:"BREAKER_MAX_FAILURES"    envDefault:"5"`
	BreakerResetTimeout  time.Duration `env:"BREAKER_RESET_TIMEOUT"   envDefault:"60s"`
	BreakerHalfOpenCalls int           `env:"BREAKER_HALF_OPEN_CALLS" envDefault:"1"`

	// Rate Limiting
	RateLimitCapacity  int64 `env:"RATE_LIMIT_CAPACITY"  envDefault:"100"`
	RateLimitRefill    int64 `env:"RATE_LIMIT_REFILL"    envDefault:"10"`
	GlobalRateCapacity int64 `env:"GLOBAL_RATE_CAPACITY" envDefault:"10000"`
	GlobalRateRefill   int64 `env:"GLOBAL_RATE_REFILL"   envDefault:"1000"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

func main() {
	// .env file is optional
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STREETLIGHT_"}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting streetlight in production mode",
		slog.String("mode", cfg.Mode),
		slog.String("address", cfg.Address))

	m := metrics.New("streetlight", prometheus.DefaultRegisterer)

	checker := health.NewChecker(10 * time.Second)
	registerHealthChecks(checker, cfg, m)

	base, err := baseHandler(cfg, checker, m, logger)
	if err != nil {
		logger.Error("Failed to create handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	perClientLimiter := ratelimit.NewLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefill, 10000)
	defer perClientLimiter.Close()
	globalLimiter := ratelimit.NewTokenBucket(cfg.GlobalRateCapacity, cfg.GlobalRateRefill)

	h := buildHandler(base, perClientLimiter, globalLimiter, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return startMetricsServer(ctx, cfg.MetricsPort, logger)
	})

	g.Go(func() error {
		healthServer := tcp.New(tcp.Config{
			Address:         fmt.Sprintf(":%d", cfg.HealthPort),
			ShutdownTimeout: 5 * time.Second,
			MaxLineBytes:    cfg.MaxLineBytes,
			Logger:          logger,
		}, healthHandler(checker))
		return healthServer.Listen(ctx)
	})

	g.Go(func() error {
		server := tcp.New(tcp.Config{
			Address:         cfg.Address,
			ShutdownTimeout: cfg.ShutdownTimeout,
			MaxLineBytes:    cfg.MaxLineBytes,
			Logger:          logger,
			Metrics:         m,
		}, h)
		return server.Listen(ctx)
	})

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Servers drain on their own; this bounds the whole shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout+5*time.Second)
	defer shutdownCancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout exceeded, forcing exit")
		os.Exit(1)
	}
}

// setupLogger creates a structured logger with the specified level and format.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// startMetricsServer serves Prometheus metrics until ctx is cancelled.
func startMetricsServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", slog.String("address", addr))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
