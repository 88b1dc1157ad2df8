// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/absmach/streetlight/examples/echo"
	"github.com/absmach/streetlight/examples/events"
	"github.com/absmach/streetlight/examples/fileserver"
	"github.com/absmach/streetlight/examples/simple"
	"github.com/absmach/streetlight/pkg/breaker"
	"github.com/absmach/streetlight/pkg/client"
	"github.com/absmach/streetlight/pkg/handler"
	"github.com/absmach/streetlight/pkg/health"
	"github.com/absmach/streetlight/pkg/metrics"
	"github.com/absmach/streetlight/pkg/proxy"
	"github.com/absmach/streetlight/pkg/ratelimit"
)

// baseHandler returns the handler selected by cfg.Mode.
func baseHandler(cfg Config, checker *health.Checker, m *metrics.Metrics, logger *slog.Logger) (handler.Handler, error) {
	switch cfg.Mode {
	case "echo":
		return echo.New(), nil

	case "files":
		return fileserver.New(cfg.RootDir, logger)

	case "events":
		return events.New(events.Config{Interval: cfg.EventInterval, Metrics: m}), nil

	case "proxy":
		if cfg.Target == "" {
			return nil, fmt.Errorf("proxy mode requires STREETLIGHT_TARGET")
		}
		cb := breaker.New(breaker.Config{
			MaxFailures:      cfg.BreakerMaxFailures,
			ResetTimeout:     cfg.BreakerResetTimeout,
			SuccessThreshold: 2,
			MaxHalfOpenCalls: cfg.BreakerHalfOpenCalls,
		})
		checker.Register("upstream", func(ctx context.Context) error {
			if cb.State() == breaker.StateOpen {
				return fmt.Errorf("circuit breaker open for %s", cfg.Target)
			}
			return nil
		})
		c := client.New(client.Config{
			Address:      cfg.Target,
			DialTimeout:  cfg.DialTimeout,
			MaxLineBytes: cfg.MaxLineBytes,
			Breaker:      cb,
			Metrics:      m,
			Logger:       logger,
		})
		return proxy.NewForwarder(c, logger), nil

	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// buildHandler wraps the base handler: logging innermost, then rate
// limiting, then metrics so rejected connections are counted too.
func buildHandler(base handler.Handler, limiter *ratelimit.Limiter, global *ratelimit.TokenBucket, m *metrics.Metrics, logger *slog.Logger) handler.Handler {
	var h handler.Handler = simple.New(base, logger)
	h = ratelimit.NewHandler(h, limiter, global, m)
	return metrics.NewHandler(h, m)
}

// healthHandler serves the health, readiness and liveness endpoints.
func healthHandler(checker *health.Checker) handler.Handler {
	mux := handler.NewMux(nil)
	mux.Handle("/health", checker.Handler())
	mux.Handle("/ready", checker.ReadinessHandler())
	mux.Handle("/live", health.LivenessHandler())
	return mux
}

// registerHealthChecks adds the resource checks.
func registerHealthChecks(checker *health.Checker, cfg Config, m *metrics.Metrics) {
	checker.Register("goroutines", func(ctx context.Context) error {
		count := runtime.NumGoroutine()
		m.GoroutinesActive.Set(float64(count))
		if count > cfg.MaxGoroutines {
			return fmt.Errorf("too many goroutines: %d > %d", count, cfg.MaxGoroutines)
		}
		return nil
	})

	checker.Register("memory", func(ctx context.Context) error {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		m.MemoryAllocated.WithLabelValues("heap").Set(float64(stats.HeapAlloc))
		m.MemoryAllocated.WithLabelValues("sys").Set(float64(stats.Sys))
		return nil
	})
}
