// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package breaker guards calls to an upstream server with a circuit breaker.
//
// The breaker does not decide what a failure is. Callers reserve a slot with
// Allow, run the exchange and report the outcome, so an upstream that answers
// 5xx can be counted the same as one that refuses the connection.
package breaker

import (
	"sync"
	"time"

	"github.com/absmach/streetlight/pkg/errors"
)

// ErrCircuitOpen is returned when the circuit is open or the half-open trial
// slots are taken. It matches errors.ErrBackendUnavailable.
var ErrCircuitOpen = errors.Wrap(errors.ErrBackendUnavailable, "circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration.
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Default: 5.
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before trial calls
	// are let through. Default: 60s.
	ResetTimeout time.Duration
	// SuccessThreshold is the number of successful trial calls that closes
	// the circuit. Default: 2.
	SuccessThreshold int
	// MaxHalfOpenCalls bounds the trial calls in flight while half-open.
	// Default: 1.
	MaxHalfOpenCalls int
}

type counts struct {
	failures  int // consecutive, while closed
	successes int // trial calls, while half-open
	inFlight  int // trial calls, while half-open
}

// CircuitBreaker tracks upstream health across calls. It is safe for
// concurrent use.
type CircuitBreaker struct {
	mu            sync.Mutex
	config        Config
	state         State
	generation    uint64
	counts        counts
	openUntil     time.Time
	onStateChange func(from, to State)
	now           func() time.Time
}

// New creates a closed circuit breaker.
func New(config Config) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.MaxHalfOpenCalls <= 0 {
		config.MaxHalfOpenCalls = 1
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow reserves a call. On success the caller runs the call and reports its
// outcome through done; only the first report counts. Reports for calls
// admitted before the last state change are ignored.
func (cb *CircuitBreaker) Allow() (done func(success bool), err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && !cb.now().Before(cb.openUntil) {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if cb.counts.inFlight >= cb.config.MaxHalfOpenCalls {
			return nil, ErrCircuitOpen
		}
		cb.counts.inFlight++
	}

	gen := cb.generation
	var once sync.Once
	return func(success bool) {
		once.Do(func() { cb.record(gen, success) })
	}, nil
}

// Call runs fn if the breaker admits it. A non-nil error from fn counts as
// a failure and is returned unchanged.
func (cb *CircuitBreaker) Call(fn func() error) error {
	done, err := cb.Allow()
	if err != nil {
		return err
	}
	err = fn()
	done(err == nil)
	return err
}

func (cb *CircuitBreaker) record(gen uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return
	}

	switch cb.state {
	case StateClosed:
		if success {
			cb.counts.failures = 0
			return
		}
		cb.counts.failures++
		if cb.counts.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}

	case StateHalfOpen:
		cb.counts.inFlight--
		if !success {
			cb.setState(StateOpen)
			return
		}
		cb.counts.successes++
		if cb.counts.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to
	cb.generation++
	cb.counts = counts{}
	if to == StateOpen {
		cb.openUntil = cb.now().Add(cb.config.ResetTimeout)
	}

	if fn := cb.onStateChange; fn != nil {
		go fn(from, to)
	}
}

// State returns the current state. An open circuit whose reset timeout has
// passed still reports open until the next Allow.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// OnStateChange registers a callback run in its own goroutine on every
// transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Stats returns the state with the consecutive failure count and the
// successful trial count.
func (cb *CircuitBreaker) Stats() (state State, failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.counts.failures, cb.counts.successes
}
