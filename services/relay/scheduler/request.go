// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"fmt"
	"time"

	"github.com/AleutianAI/relay/pkg/clock"
)

// =============================================================================
// Priority
// =============================================================================

// Priority is the ordinal dispatch category of a request.
//
// Higher priorities always dispatch before lower ones. There is no aging:
// a steady stream of CRITICAL work can starve LOW items indefinitely.
type Priority int

const (
	// PriorityLow is background work; first to be rejected under pressure.
	PriorityLow Priority = iota - 1

	// PriorityNormal is the default for interactive requests; the zero value
	// of SubmitOptions submits at this level.
	PriorityNormal

	// PriorityHigh evicts lower-priority queued work when the queue is full.
	PriorityHigh

	// PriorityCritical is reserved for must-run control traffic.
	PriorityCritical
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(p))
	}
}

// =============================================================================
// Status
// =============================================================================

// Status is the lifecycle state of a request.
//
// Transitions: Pending → Processing → {Completed | Failed | Canceled}.
// A Pending request may also move directly to Failed (fast-fail paths) or
// Canceled (cancel, eviction, clear, queued timeout).
type Status int

const (
	// StatusPending means the request is queued and undispatched.
	StatusPending Status = iota

	// StatusProcessing means the request has been dispatched.
	StatusProcessing

	// StatusCompleted is the successful terminal state.
	StatusCompleted

	// StatusFailed is the unsuccessful terminal state.
	StatusFailed

	// StatusCanceled is the terminal state for canceled or evicted requests.
	StatusCanceled
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusProcessing:
		return "PROCESSING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusCanceled:
		return "CANCELED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// =============================================================================
// Submit Options
// =============================================================================

// StreamSink receives response chunks for a streaming request.
//
// Returning a non-nil error aborts the stream; the error is surfaced as the
// request's terminal failure. Canceling an in-flight stream is the caller's
// responsibility (close whatever backs the sink), not the scheduler's.
type StreamSink func(chunk []byte) error

// SubmitOptions controls a single submission.
//
// The zero value submits a NORMAL priority, cacheable, non-streaming request
// with the scheduler's configured timeout and retry budget.
type SubmitOptions struct {
	// Priority orders dispatch. Default: PriorityNormal.
	Priority Priority

	// CacheKey enables the cache fast path and write-through for this
	// request. Empty disables caching for the request.
	CacheKey string

	// CacheTTL overrides the scheduler's default cache TTL when > 0.
	CacheTTL time.Duration

	// CacheTags are attached to the cached value for bulk invalidation.
	CacheTags []string

	// Timeout bounds how long the request may wait in the queue. It has no
	// effect once the request is dispatched to the transport. Zero uses the
	// scheduler's RequestTimeout; negative disables the queue timeout.
	Timeout time.Duration

	// Retries overrides the scheduler's MaxRetries when non-nil.
	Retries *int

	// BypassCache skips both the cache lookup and the write-through.
	BypassCache bool

	// BypassCircuitBreaker lets the request through an open breaker.
	BypassCircuitBreaker bool

	// BypassQueue dispatches immediately, ignoring the concurrency limit
	// and queue capacity. The breaker gate still applies.
	BypassQueue bool

	// Sink makes the request streaming. Streaming requests skip the cache
	// and the batching aggregator.
	Sink StreamSink
}

// =============================================================================
// Request
// =============================================================================

// Request is one submitted unit of work.
//
// A Request is created by Submit and mutated only by the scheduler, the
// retry controller, and the batching aggregator, always under the
// scheduler's lock or from the single goroutine executing it.
type Request struct {
	// ID uniquely identifies the request across retries.
	ID string

	// Endpoint identifies the upstream operation.
	Endpoint string

	// Payload is the opaque request body handed to the transport.
	Payload any

	// Priority orders dispatch; see Priority.
	Priority Priority

	// Status is the current lifecycle state.
	Status Status

	// EnqueuedAt, StartedAt, EndedAt are lifecycle timestamps.
	EnqueuedAt time.Time
	StartedAt  time.Time
	EndedAt    time.Time

	// RetryCount is the number of retries already consumed.
	RetryCount int

	// ResponseTime is the transport latency of the successful attempt.
	ResponseTime time.Duration

	// Err holds the terminal error, if any.
	Err error

	// Options are the resolved submission options.
	Options SubmitOptions

	// future is the completion handle; fulfilled exactly once.
	future *Future

	// seq breaks priority ties FIFO by admission order.
	seq uint64

	// maxRetries is the resolved retry budget for this request.
	maxRetries int

	// queueTimer expires the request while it is still Pending.
	queueTimer clock.Timer
}

// Future returns the request's completion handle.
func (r *Request) Future() *Future { return r.future }
