// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import "time"

// Stats is a point-in-time snapshot of scheduler state.
//
// Counters cover terminal outcomes only: a request that is retried counts
// once, when it reaches a terminal state.
type Stats struct {
	// QueueSize is the number of Pending requests.
	QueueSize int `json:"queue_size"`

	// ActiveRequests is the number of Processing requests.
	ActiveRequests int `json:"active_requests"`

	// RequestCount is the total number of requests that reached a terminal
	// state (completed, failed, canceled, timed out).
	RequestCount int64 `json:"request_count"`

	// SuccessCount is the number of requests that completed successfully.
	SuccessCount int64 `json:"success_count"`

	// FailureRate is (RequestCount - SuccessCount) / RequestCount,
	// zero when no requests have finished.
	FailureRate float64 `json:"failure_rate"`

	// AverageResponseTime is mean transport latency over successes.
	AverageResponseTime time.Duration `json:"average_response_time"`

	// CircuitBreakerOpen reports the breaker state at snapshot time.
	CircuitBreakerOpen bool `json:"circuit_breaker_open"`

	// IsHealthy reports the health monitor flag; true when no monitor
	// is attached.
	IsHealthy bool `json:"is_healthy"`

	// Uptime is the elapsed time since the scheduler was created.
	Uptime time.Duration `json:"uptime"`
}

// HistoryEntry is one record in the bounded recent-request log.
type HistoryEntry struct {
	// Timestamp is when the request reached its terminal state.
	Timestamp time.Time `json:"timestamp"`

	// Endpoint identifies the upstream operation.
	Endpoint string `json:"endpoint"`

	// Success reports whether the request completed.
	Success bool `json:"success"`

	// ResponseTime is the transport latency for successful requests,
	// zero otherwise.
	ResponseTime time.Duration `json:"response_time"`

	// Error is the terminal error message, empty on success.
	Error string `json:"error,omitempty"`

	// Cached reports a cache-hit short circuit (no transport call).
	Cached bool `json:"cached,omitempty"`
}
