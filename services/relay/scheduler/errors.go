// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import "errors"

// -----------------------------------------------------------------------------
// Error Sentinel Values
// -----------------------------------------------------------------------------

// ErrQueueFull is returned when admission control refuses a LOW or NORMAL
// priority request because the queue is at capacity. Never retried.
var ErrQueueFull = errors.New("request queue is full")

// ErrCircuitOpen is returned when the circuit breaker has tripped and the
// request does not bypass it. The transport is not invoked. Never retried.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrUnhealthy is returned when the health monitor gate refuses new
// submissions. Independent of the circuit breaker. Never retried.
var ErrUnhealthy = errors.New("service is unhealthy")

// ErrTimeout is returned when a request expires while still queued. A request
// already dispatched to the transport is never timed out by the scheduler.
var ErrTimeout = errors.New("request timed out in queue")

// ErrCanceled is returned for explicit Cancel calls, queue-overflow eviction,
// and Clear. Always immediate and terminal.
var ErrCanceled = errors.New("request canceled")

// ErrNoBatchResult is returned to a batch member when the combined response
// could not be matched back to it during demultiplexing.
var ErrNoBatchResult = errors.New("no result for batch member")

// ErrSchedulerClosed is returned by Submit after Close.
var ErrSchedulerClosed = errors.New("scheduler is closed")
