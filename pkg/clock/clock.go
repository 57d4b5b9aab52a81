// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package clock provides an injectable time source for timer-driven components.
//
// Batch windows, retry backoff, circuit breaker resets, cache sweeps, and
// health ticks all run off a Clock instead of the time package directly, so
// tests can drive them with a FakeClock instead of wall-clock waits.
//
// # Basic Usage
//
//	c := clock.Real()
//	t := c.AfterFunc(5*time.Second, func() { ... })
//	defer t.Stop()
//
// # Testing
//
//	fc := clock.NewFake(time.Unix(1700000000, 0))
//	component := NewComponent(fc)
//	fc.Advance(5 * time.Second) // fires due timers synchronously
package clock

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// Interfaces
// =============================================================================

// Clock is an abstract time source.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the elapsed time since t.
	Since(t time.Time) time.Duration

	// AfterFunc schedules f to run after d. The returned Timer can stop
	// the call before it fires.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker returns a ticker that delivers on its channel every d.
	NewTicker(d time.Duration) Ticker
}

// Timer is a single pending timed call.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was stopped.
	Stop() bool
}

// Ticker delivers periodic ticks on C until stopped.
type Ticker interface {
	// C returns the tick channel.
	C() <-chan time.Time

	// Stop shuts the ticker down. It does not close C.
	Stop()
}

// =============================================================================
// Real Clock
// =============================================================================

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time                    { return time.Now() }
func (realClock) Since(t time.Time) time.Duration   { return time.Since(t) }
func (realClock) NewTicker(d time.Duration) Ticker  { return &realTicker{t: time.NewTicker(d)} }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{t: time.AfterFunc(d, f)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) Stop() bool { return r.t.Stop() }

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// =============================================================================
// Fake Clock
// =============================================================================

// FakeClock is a manually advanced Clock for tests.
//
// # Description
//
// Timers and tickers scheduled on a FakeClock fire only when Advance moves
// the clock past their deadline. Callbacks run synchronously on the
// advancing goroutine, in deadline order, so tests observe a deterministic
// sequence of timer fires.
//
// # Thread Safety
//
// FakeClock is safe for concurrent use. Do not call Advance from inside a
// timer callback.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
	nextID  uint64
}

// NewFake creates a FakeClock starting at the given time.
func NewFake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns elapsed fake time since t.
func (c *FakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// AfterFunc schedules f to run when the clock advances past d from now.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{
		clock:    c,
		id:       c.nextID,
		deadline: c.now.Add(d),
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// NewTicker returns a ticker driven by Advance.
func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		clock:  c,
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time, 64),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers and tickers.
//
// # Description
//
// Timers fire synchronously in deadline order (creation order breaks ties).
// A callback that schedules a new timer inside the advanced window causes
// that timer to fire during the same Advance call.
//
// # Inputs
//
//   - d: Amount of fake time to add. Must be non-negative.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.popDueTimer(target)
		if t == nil {
			break
		}
		t.f()
	}

	c.mu.Lock()
	c.now = target
	for _, tk := range c.tickers {
		for !tk.stopped && !tk.next.After(target) {
			select {
			case tk.ch <- tk.next:
			default:
			}
			tk.next = tk.next.Add(tk.period)
		}
	}
	c.mu.Unlock()
}

// PendingTimers returns the number of unfired timers. Useful in tests.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// popDueTimer removes and returns the earliest timer due at or before target,
// setting the clock to the timer's deadline so callbacks observe a
// monotonically advancing Now.
func (c *FakeClock) popDueTimer(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].id < c.timers[j].id
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})

	for i, t := range c.timers {
		if t.deadline.After(target) {
			continue
		}
		c.timers = append(c.timers[:i], c.timers[i+1:]...)
		if t.deadline.After(c.now) {
			c.now = t.deadline
		}
		return t
	}
	return nil
}

func (c *FakeClock) removeTimer(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.timers {
		if t.id == id {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock    *FakeClock
	id       uint64
	deadline time.Time
	f        func()
}

func (t *fakeTimer) Stop() bool { return t.clock.removeTimer(t.id) }

type fakeTicker struct {
	clock   *FakeClock
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// Compile-time interface checks.
var (
	_ Clock = realClock{}
	_ Clock = (*FakeClock)(nil)
)
