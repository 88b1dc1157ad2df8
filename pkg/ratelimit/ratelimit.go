// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit limits how often a client may open a connection, using
// one token bucket per client host.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket admits one connection per token. Tokens accrue continuously
// at the refill rate up to capacity.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64 // tokens per second
	tokens   float64
	last     time.Time
	now      func() time.Time
}

// NewTokenBucket returns a full bucket holding capacity tokens and gaining
// refillRate tokens per second.
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate int64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity: float64(capacity),
		rate:     float64(refillRate),
		tokens:   float64(capacity),
		last:     now(),
		now:      now,
	}
}

// Allow takes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	ok, _ := tb.Take()
	return ok
}

// Take takes a token if one is available. Otherwise it reports how long
// until the next token, or zero if the bucket never refills.
func (tb *TokenBucket) Take() (ok bool, retryAfter time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	if tb.rate <= 0 {
		return false, 0
	}
	missing := 1 - tb.tokens
	return false, time.Duration(math.Ceil(missing / tb.rate * float64(time.Second)))
}

// Available returns the number of whole tokens in the bucket.
func (tb *TokenBucket) Available() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return int64(tb.tokens)
}

func (tb *TokenBucket) full() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens >= tb.capacity
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
		tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed*tb.rate)
	}
	tb.last = now
}

// Limiter manages per-client rate limiters.
type Limiter struct {
	mu           sync.RWMutex
	limiters     map[string]*TokenBucket
	capacity     int64
	refillRate   int64
	maxClients   int
	cleanupTimer *time.Timer
	closed       bool
	now          func() time.Time
}

// NewLimiter creates a new rate limiter with per-client tracking.
func NewLimiter(capacity, refillRate int64, maxClients int) *Limiter {
	if maxClients == 0 {
		maxClients = 10000
	}

	l := &Limiter{
		limiters:   make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		maxClients: maxClients,
		now:        time.Now,
	}

	// Periodic cleanup of inactive limiters
	l.cleanupTimer = time.AfterFunc(5*time.Minute, l.cleanup)

	return l
}

// Allow takes a token from clientID's bucket.
func (l *Limiter) Allow(clientID string) bool {
	ok, _ := l.Take(clientID)
	return ok
}

// Take takes a token from clientID's bucket, creating it on first use. When
// every client slot is in use by a bucket that has not refilled, Take fails
// without a retry hint.
func (l *Limiter) Take(clientID string) (ok bool, retryAfter time.Duration) {
	l.mu.RLock()
	tb, exists := l.limiters[clientID]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		// Double-check after acquiring write lock
		tb, exists = l.limiters[clientID]
		if !exists {
			// Check if we've exceeded max clients
			if len(l.limiters) >= l.maxClients {
				l.evictFull()
			}
			if len(l.limiters) >= l.maxClients {
				l.mu.Unlock()
				return false, 0
			}

			tb = newTokenBucket(l.capacity, l.refillRate, l.now)
			l.limiters[clientID] = tb
		}
		l.mu.Unlock()
	}

	return tb.Take()
}

// Remove removes a client's rate limiter.
func (l *Limiter) Remove(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, clientID)
}

// cleanup removes inactive limiters to prevent unbounded growth.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictFull()

	if l.closed {
		return
	}
	l.cleanupTimer = time.AfterFunc(5*time.Minute, l.cleanup)
}

// evictFull drops buckets that have refilled to capacity.
func (l *Limiter) evictFull() {
	for k, tb := range l.limiters {
		if tb.full() {
			delete(l.limiters, k)
		}
	}
}

// Stats returns limiter statistics.
func (l *Limiter) Stats() (clients int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

// Close stops the cleanup timer.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.cleanupTimer != nil {
		l.cleanupTimer.Stop()
	}
}
