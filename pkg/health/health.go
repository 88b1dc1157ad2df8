// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package health provides health, liveness and readiness endpoints served
// as HTTP/1.1 messages through the codec.
package health

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/absmach/streetlight/pkg/codec"
	"github.com/absmach/streetlight/pkg/handler"
)

const checkTimeout = 5 * time.Second

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a single health check.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ns"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) error

// Checker manages health checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	cache  map[string]*Check
	ttl    time.Duration
}

// NewChecker creates a new health checker.
func NewChecker(cacheTTL time.Duration) *Checker {
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Second
	}
	return &Checker{
		checks: make(map[string]CheckFunc),
		cache:  make(map[string]*Check),
		ttl:    cacheTTL,
	}
}

// Register adds a health check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Health returns the overall health status. One failing check degrades the
// service; it is unhealthy when every check fails.
func (c *Checker) Health(ctx context.Context) (Status, []Check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	checks := make([]Check, 0, len(c.checks))
	failed := 0

	for name, checkFunc := range c.checks {
		// Check cache
		if cached, ok := c.cache[name]; ok && time.Since(cached.LastChecked) < c.ttl {
			checks = append(checks, *cached)
			if cached.Status != StatusHealthy {
				failed++
			}
			continue
		}

		// Run check
		start := time.Now()
		err := checkFunc(ctx)
		duration := time.Since(start)

		check := &Check{
			Name:        name,
			LastChecked: time.Now(),
			Duration:    duration,
		}

		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			failed++
		} else {
			check.Status = StatusHealthy
		}

		c.cache[name] = check
		checks = append(checks, *check)
	}

	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	switch {
	case failed == 0:
		return StatusHealthy, checks
	case failed == len(checks):
		return StatusUnhealthy, checks
	default:
		return StatusDegraded, checks
	}
}

type report struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks,omitempty"`
}

// Handler returns a handler for the health endpoint. Degraded services still
// answer 200.
func (c *Checker) Handler() handler.Handler {
	return handler.Func(func(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		status, checks := c.Health(ctx)
		code := codec.StatusOK
		if status == StatusUnhealthy {
			code = codec.StatusServiceUnavailable
		}
		return writeJSON(w, code, report{Status: status, Checks: checks})
	})
}

// ReadinessHandler returns a handler for readiness checks. Only a healthy
// service is ready.
func (c *Checker) ReadinessHandler() handler.Handler {
	return handler.Func(func(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		status, checks := c.Health(ctx)
		code := codec.StatusOK
		if status != StatusHealthy {
			code = codec.StatusServiceUnavailable
		}
		return writeJSON(w, code, report{Status: status, Checks: checks})
	})
}

// LivenessHandler returns a handler for liveness checks.
func LivenessHandler() handler.Handler {
	return handler.Func(func(ctx context.Context, hctx *handler.Context, req *codec.Request, w io.Writer) error {
		return writeJSON(w, codec.StatusOK, map[string]string{"status": "alive"})
	})
}

func writeJSON(w io.Writer, status codec.Status, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	resp := codec.NewResponse(status, body)
	if err := resp.Header.Add(codec.HeaderContentType, "application/json"); err != nil {
		return err
	}
	return codec.WriteResponse(w, resp)
}
