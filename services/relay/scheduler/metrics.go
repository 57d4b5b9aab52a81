// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Request Scheduling
// =============================================================================

var (
	// requestsSubmitted counts admissions by priority.
	// Labels: endpoint, priority
	requestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "requests_submitted_total",
		Help:      "Total requests admitted to the scheduler",
	}, []string{"endpoint", "priority"})

	// requestsCompleted counts terminal outcomes.
	// Labels: endpoint, outcome (success, failed, canceled, timeout, rejected)
	requestsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "requests_completed_total",
		Help:      "Total requests reaching a terminal state, by outcome",
	}, []string{"endpoint", "outcome"})

	// queueDepth tracks the number of pending requests.
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Current number of queued requests",
	})

	// activeRequests tracks in-flight transport calls.
	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "active_requests",
		Help:      "Current number of in-flight requests",
	})

	// responseLatency measures transport latency for successful requests.
	// Labels: endpoint
	responseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "response_latency_seconds",
		Help:      "Transport latency of successful requests in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"endpoint"})

	// breakerState is 1 while the circuit breaker is open.
	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "circuit_breaker_open",
		Help:      "1 when the circuit breaker is open, 0 when closed",
	})

	// retriesScheduled counts backoff retries.
	// Labels: endpoint
	retriesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "retries_total",
		Help:      "Total retries scheduled after transport failures",
	}, []string{"endpoint"})

	// batchFlushes counts flushed batch groups.
	// Labels: endpoint, reason (window, size)
	batchFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "batch_flushes_total",
		Help:      "Total batch group flushes by trigger",
	}, []string{"endpoint", "reason"})

	// batchSize tracks members per flushed group.
	// Labels: endpoint
	batchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "batch_size",
		Help:      "Members per flushed batch group",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
	}, []string{"endpoint"})

	// cacheLookups counts cache fast-path lookups.
	// Labels: result (hit, miss)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Subsystem: "scheduler",
		Name:      "cache_lookups_total",
		Help:      "Total cache fast-path lookups by result",
	}, []string{"result"})
)

// =============================================================================
// Metrics Recording Functions
// =============================================================================

// recordSubmission records an admitted request.
func recordSubmission(endpoint string, priority Priority) {
	requestsSubmitted.WithLabelValues(endpoint, priority.String()).Inc()
}

// recordOutcome records a terminal state.
//
// Inputs:
//
//	endpoint - The upstream operation.
//	outcome - "success", "failed", "canceled", "timeout", or "rejected".
func recordOutcome(endpoint, outcome string) {
	requestsCompleted.WithLabelValues(endpoint, outcome).Inc()
}

// recordLatency records transport latency for a successful request.
func recordLatency(endpoint string, seconds float64) {
	responseLatency.WithLabelValues(endpoint).Observe(seconds)
}

// recordBreakerOpen flips the breaker gauge.
func recordBreakerOpen(open bool) {
	if open {
		breakerState.Set(1)
	} else {
		breakerState.Set(0)
	}
}

// recordRetry records one scheduled backoff retry.
func recordRetry(endpoint string) {
	retriesScheduled.WithLabelValues(endpoint).Inc()
}

// recordBatchFlush records one flushed group.
//
// Inputs:
//
//	endpoint - The upstream operation.
//	reason - "window" or "size".
//	members - Group size at flush time.
func recordBatchFlush(endpoint, reason string, members int) {
	batchFlushes.WithLabelValues(endpoint, reason).Inc()
	batchSize.WithLabelValues(endpoint).Observe(float64(members))
}

// recordCacheLookup records a cache fast-path result.
func recordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}
