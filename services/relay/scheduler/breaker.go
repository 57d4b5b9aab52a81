// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"sync"
	"time"

	"github.com/AleutianAI/relay/pkg/clock"
)

// CircuitBreakerConfig configures breaker behavior.
//
// # Example
//
//	config := CircuitBreakerConfig{
//	    Threshold:    5,                // Open once failure pressure hits 5
//	    ResetTimeout: 30 * time.Second, // Close again 30s after opening
//	}
type CircuitBreakerConfig struct {
	// Threshold is the failure pressure at which the circuit opens.
	// Default: 5
	Threshold int

	// ResetTimeout is how long the circuit stays open. When it elapses the
	// circuit returns directly to closed; there is no half-open probe phase.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// CountTimeouts includes queued-timeout expiries in failure accounting.
	// Default: false
	CountTimeouts bool
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:    5,
		ResetTimeout: 30 * time.Second,
	}
}

// CircuitBreaker tracks failure pressure and blocks dispatch when open.
//
// # Description
//
// Unlike the classic three-state pattern, this breaker has no half-open
// probe phase: after ResetTimeout it snaps directly back to closed with a
// zeroed counter. Failure pressure decays by exactly 1 per success, with no
// time windowing, so an old failure and a fresh one weigh the same. Both
// behaviors are deliberate and load-bearing for callers that depend on the
// fast-fail window being exact.
//
// # Thread Safety
//
// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	config     CircuitBreakerConfig
	clock      clock.Clock
	mu         sync.Mutex
	failures   int
	open       bool
	resetTimer clock.Timer

	// onOpen fires synchronously (outside the lock) when the circuit trips.
	// The scheduler uses it to purge queued non-bypass requests.
	onOpen func()

	// onClose fires synchronously (outside the lock) when the reset timer
	// returns the circuit to closed.
	onClose func()
}

// NewCircuitBreaker creates a closed breaker.
//
// # Inputs
//
//   - config: Breaker configuration; zero values take defaults.
//   - clk: Time source for the reset timer. Nil uses the real clock.
func NewCircuitBreaker(config CircuitBreakerConfig, clk clock.Clock) *CircuitBreaker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &CircuitBreaker{config: config, clock: clk}
}

// Allow reports whether a request may proceed to the transport.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return !cb.open
}

// RecordSuccess decays failure pressure by 1, floored at 0.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.failures > 0 {
		cb.failures--
	}
}

// RecordFailure adds failure pressure and opens the circuit at threshold.
//
// # Description
//
// Called once per request that exhausts its retries (and, when
// CountTimeouts is set, per queued-timeout expiry). When the count reaches
// Threshold the circuit opens, the reset timer starts, and the onOpen
// callback fires.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.failures++
	trip := !cb.open && cb.failures >= cb.config.Threshold
	if trip {
		cb.open = true
		cb.resetTimer = cb.clock.AfterFunc(cb.config.ResetTimeout, cb.reset)
	}
	onOpen := cb.onOpen
	cb.mu.Unlock()

	if trip && onOpen != nil {
		onOpen()
	}
}

// reset returns the circuit directly to closed with zero pressure.
func (cb *CircuitBreaker) reset() {
	cb.mu.Lock()
	wasOpen := cb.open
	cb.open = false
	cb.failures = 0
	onClose := cb.onClose
	cb.mu.Unlock()

	if wasOpen && onClose != nil {
		onClose()
	}
}

// Open reports whether the circuit is currently open.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// Failures returns the current failure pressure.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the circuit closed and clears pressure. Use when the
// upstream is known to be fixed externally.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	if cb.resetTimer != nil {
		cb.resetTimer.Stop()
		cb.resetTimer = nil
	}
	cb.mu.Unlock()
	cb.reset()
}
