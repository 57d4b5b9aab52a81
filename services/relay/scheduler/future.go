// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"context"
	"sync"
)

// Future is a single-assignment completion handle for a submitted request.
//
// # Description
//
// A Future is fulfilled exactly once, on exactly one terminal state of its
// request (Completed, Failed, or Canceled). Consumers can either block on
// Wait or register an OnComplete callback; both styles observe the same
// single result.
//
// # Thread Safety
//
// Future is safe for concurrent use. Fulfillment after the first call is
// a no-op, which keeps the exactly-once invariant even under races between
// timeout, cancel, and completion paths.
type Future struct {
	// id is the request id this future resolves; set once at admission.
	id string

	mu        sync.Mutex
	done      chan struct{}
	value     any
	err       error
	fulfilled bool
	callbacks []func(any, error)
}

// NewFuture creates an unfulfilled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete fulfills the future with a value. Later calls are no-ops.
func (f *Future) complete(value any) { f.fulfill(value, nil) }

// fail fulfills the future with an error. Later calls are no-ops.
func (f *Future) fail(err error) { f.fulfill(nil, err) }

func (f *Future) fulfill(value any, err error) {
	f.mu.Lock()
	if f.fulfilled {
		f.mu.Unlock()
		return
	}
	f.fulfilled = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	// Callbacks run outside the lock so they may inspect the future.
	for _, cb := range callbacks {
		cb(value, err)
	}
}

// Wait blocks until the future is fulfilled or the context ends.
//
// # Outputs
//
//   - any: The request result on success.
//   - error: The terminal request error, or the context error if ctx ended
//     first. A context error does not cancel the underlying request.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnComplete registers fn to run when the future is fulfilled.
//
// # Description
//
// If the future is already fulfilled, fn runs synchronously before
// OnComplete returns. Otherwise fn runs on the goroutine that fulfills
// the future, so it must not block.
func (f *Future) OnComplete(fn func(value any, err error)) {
	f.mu.Lock()
	if f.fulfilled {
		value, err := f.value, f.err
		f.mu.Unlock()
		fn(value, err)
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// RequestID returns the id of the request this future resolves, usable
// with Scheduler.Cancel while the request is still queued.
func (f *Future) RequestID() string { return f.id }

// Done returns a channel closed when the future is fulfilled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the fulfilled value and error without blocking.
// The bool reports whether the future is fulfilled yet.
func (f *Future) Result() (any, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.fulfilled
}
