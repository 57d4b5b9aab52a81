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
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/pkg/logging"
)

var tracer = otel.Tracer("relay.scheduler")

// =============================================================================
// Configuration
// =============================================================================

// Config configures the scheduler and its embedded components.
//
// Zero values take the documented defaults; a negative RequestTimeout or
// MaxRetries disables the feature.
type Config struct {
	// MaxConcurrentRequests caps in-flight transport calls.
	// Default: 4
	MaxConcurrentRequests int

	// MaxQueueSize caps pending requests. A full queue rejects LOW/NORMAL
	// submissions and evicts the lowest-priority queued item for
	// HIGH/CRITICAL ones.
	// Default: 100
	MaxQueueSize int

	// RequestTimeout bounds how long a request may wait in the queue. It has
	// no effect once the request is dispatched. Negative disables timeouts.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// MaxRetries is the per-request retry budget for transport failures.
	// Negative means no retries.
	// Default: 3
	MaxRetries int

	// RetryBaseDelay is the backoff unit: the n-th retry waits
	// RetryBaseDelay × 2^(n-1).
	// Default: 1 second
	RetryBaseDelay time.Duration

	// BatchingEnabled turns on the batching aggregator for the endpoints in
	// BatchableEndpoints.
	BatchingEnabled bool

	// BatchingWindow is how long the first member of a group waits for
	// company before flushing.
	// Default: 50 milliseconds
	BatchingWindow time.Duration

	// BatchingMaxSize flushes a group immediately when it fills.
	// Default: 8
	BatchingMaxSize int

	// BatchableEndpoints lists endpoints eligible for batching. Requests to
	// other endpoints always dispatch individually.
	BatchableEndpoints []string

	// CircuitBreakerEnabled turns on the failure-pressure circuit breaker.
	CircuitBreakerEnabled bool

	// CircuitBreakerThreshold is the failure count that opens the circuit.
	// Default: 5
	CircuitBreakerThreshold int

	// CircuitBreakerResetTimeout is how long the circuit stays open.
	// Default: 30 seconds
	CircuitBreakerResetTimeout time.Duration

	// CircuitBreakerCountsTimeouts includes queued-timeout expiries in
	// breaker failure accounting.
	CircuitBreakerCountsTimeouts bool

	// CacheEnabled turns on the cache fast path and write-through for
	// requests carrying a CacheKey.
	CacheEnabled bool

	// CacheTTL is the default lifetime for cached responses.
	// Default: 5 minutes
	CacheTTL time.Duration

	// HealthCheckInterval is the health monitor sampling cadence.
	// Default: 10 seconds
	HealthCheckInterval time.Duration

	// HealthGateEnabled refuses new submissions with ErrUnhealthy while the
	// health monitor flag is down. Independent of the circuit breaker.
	HealthGateEnabled bool

	// HistorySize bounds the recent-request log.
	// Default: 100
	HistorySize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRequests:      4,
		MaxQueueSize:               100,
		RequestTimeout:             30 * time.Second,
		MaxRetries:                 3,
		RetryBaseDelay:             time.Second,
		BatchingEnabled:            true,
		BatchingWindow:             50 * time.Millisecond,
		BatchingMaxSize:            8,
		CircuitBreakerEnabled:      true,
		CircuitBreakerThreshold:    5,
		CircuitBreakerResetTimeout: 30 * time.Second,
		CacheEnabled:               true,
		CacheTTL:                   5 * time.Minute,
		HealthCheckInterval:        10 * time.Second,
		HistorySize:                100,
	}
}

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler is a priority dispatcher with bounded concurrency in front of a
// Transport.
//
// # Description
//
// Submissions pass, in order, the health gate, the circuit breaker, and the
// cache fast path; surviving requests queue priority-first (FIFO within a
// priority) and dispatch while in-flight calls stay under the concurrency
// cap. Transport failures go through exponential-backoff retries; failure
// pressure feeds the circuit breaker. Eligible requests coalesce in the
// batching aggregator, holding their concurrency slots for the window.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Queue, counters, and
// history mutate only under one mutex, because every dispatch decision
// reads then writes those counters.
type Scheduler struct {
	config    Config
	transport Transport
	cache     Cache
	clock     clock.Clock
	logger    *logging.Logger

	breaker *CircuitBreaker
	retries *retryController
	batcher *batchAggregator
	monitor *HealthMonitor

	baseCtx   context.Context
	batchable map[string]bool
	startedAt time.Time

	mu                sync.Mutex
	queue             requestQueue
	nextSeq           uint64
	active            int
	requestCount      int64
	successCount      int64
	totalResponseTime time.Duration
	history           *ringBuffer[HistoryEntry]
	closed            bool
}

// New creates a started scheduler using the real clock.
//
// # Inputs
//
//   - config: Scheduler configuration; zero values take defaults.
//   - transport: Upstream exchange. Required.
//   - cache: Response cache; nil disables caching regardless of config.
//   - logger: Destination for structured logs. Nil uses the default logger.
func New(config Config, transport Transport, cache Cache, logger *logging.Logger) *Scheduler {
	return NewWithClock(config, transport, cache, logger, clock.Real())
}

// NewWithClock is New with an injected time source, for tests that drive
// timers deterministically.
func NewWithClock(config Config, transport Transport, cache Cache,
	logger *logging.Logger, clk clock.Clock) *Scheduler {
	if config.MaxConcurrentRequests <= 0 {
		config.MaxConcurrentRequests = 4
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = 100
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.HistorySize <= 0 {
		config.HistorySize = 100
	}
	if logger == nil {
		logger = logging.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}

	s := &Scheduler{
		config:    config,
		transport: transport,
		cache:     cache,
		clock:     clk,
		logger:    logger,
		baseCtx:   context.Background(),
		batchable: make(map[string]bool, len(config.BatchableEndpoints)),
		startedAt: clk.Now(),
		history:   newRingBuffer[HistoryEntry](config.HistorySize),
	}
	for _, endpoint := range config.BatchableEndpoints {
		s.batchable[endpoint] = true
	}

	if config.CircuitBreakerEnabled {
		s.breaker = NewCircuitBreaker(CircuitBreakerConfig{
			Threshold:     config.CircuitBreakerThreshold,
			ResetTimeout:  config.CircuitBreakerResetTimeout,
			CountTimeouts: config.CircuitBreakerCountsTimeouts,
		}, clk)
		s.breaker.onOpen = func() {
			recordBreakerOpen(true)
			s.logger.Warn("circuit breaker opened",
				"threshold", s.breaker.config.Threshold,
				"reset_timeout", s.breaker.config.ResetTimeout,
			)
			s.purgeQueued()
		}
		s.breaker.onClose = func() {
			recordBreakerOpen(false)
			s.logger.Info("circuit breaker closed")
		}
	}

	s.retries = newRetryController(config.RetryBaseDelay, clk, logger,
		s.readmit,
		func(req *Request, err error) {
			s.failActive(req, err, StatusFailed, "failed", true)
		},
	)

	if config.BatchingEnabled {
		s.batcher = newBatchAggregator(config.BatchingWindow, config.BatchingMaxSize,
			transport, clk, logger, s.baseCtx,
			s.onTransportSuccess,
			s.onTransportFailure,
			func(req *Request, err error) {
				// Demux mismatch: the upstream answered, so this is terminal
				// but not breaker pressure.
				s.failActive(req, err, StatusFailed, "failed", false)
			},
		)
	}

	s.monitor = NewHealthMonitor(HealthMonitorConfig{Interval: config.HealthCheckInterval},
		s.Stats, clk, logger)
	s.monitor.Start()

	return s
}

// Breaker exposes the circuit breaker, nil when disabled.
func (s *Scheduler) Breaker() *CircuitBreaker { return s.breaker }

// Monitor exposes the health monitor.
func (s *Scheduler) Monitor() *HealthMonitor { return s.monitor }

// =============================================================================
// Submission
// =============================================================================

// Submit runs one request to completion and returns its result.
//
// # Description
//
// Blocks until the request reaches a terminal state or ctx ends. A context
// end abandons the wait but does not cancel the request; use Cancel for
// that.
func (s *Scheduler) Submit(ctx context.Context, endpoint string, payload any,
	opts SubmitOptions) (any, error) {
	return s.SubmitAsync(ctx, endpoint, payload, opts).Wait(ctx)
}

// SubmitAsync admits one request and returns its completion handle.
//
// # Description
//
// A cache hit returns an already-completed future before any admission
// control runs, recorded as an instant success. Fast-fail paths (health
// gate, open breaker, full queue, closed scheduler) return an
// already-failed future.
func (s *Scheduler) SubmitAsync(ctx context.Context, endpoint string, payload any,
	opts SubmitOptions) *Future {
	ctx, span := tracer.Start(ctx, "scheduler.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("relay.endpoint", endpoint),
		attribute.String("relay.priority", opts.Priority.String()),
	)

	fut := NewFuture()
	fut.id = uuid.NewString()
	req := &Request{
		ID:         fut.id,
		Endpoint:   endpoint,
		Payload:    payload,
		Priority:   opts.Priority,
		Status:     StatusPending,
		Options:    opts,
		future:     fut,
		maxRetries: s.resolveRetries(opts.Retries),
	}

	// The cache consult precedes admission control entirely: a hit
	// short-circuits the pipeline even while the health gate or breaker
	// would refuse the request.
	if s.cacheUsable(opts) {
		if value, ok := s.cache.Get(ctx, opts.CacheKey); ok {
			recordCacheLookup(true)
			s.recordCacheHit(endpoint)
			fut.complete(value)
			return fut
		}
		recordCacheLookup(false)
	}

	if s.config.HealthGateEnabled && !s.monitor.IsHealthy() {
		recordOutcome(endpoint, "rejected")
		fut.fail(ErrUnhealthy)
		return fut
	}

	if s.breaker != nil && !opts.BypassCircuitBreaker && !s.breaker.Allow() {
		recordOutcome(endpoint, "rejected")
		fut.fail(ErrCircuitOpen)
		return fut
	}

	var evicted *Request

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fut.fail(ErrSchedulerClosed)
		return fut
	}
	recordSubmission(endpoint, opts.Priority)

	if opts.BypassQueue {
		req.Status = StatusProcessing
		req.StartedAt = s.clock.Now()
		s.active++
		s.updateGaugesLocked()
		s.mu.Unlock()
		go s.execute(req)
		return fut
	}

	if s.queue.len() >= s.config.MaxQueueSize {
		if opts.Priority < PriorityHigh {
			s.mu.Unlock()
			recordOutcome(endpoint, "rejected")
			fut.fail(ErrQueueFull)
			return fut
		}
		// HIGH/CRITICAL makes room by evicting the lowest-priority,
		// newest queued item.
		evicted = s.queue.peekTail()
		if evicted != nil {
			s.queue.remove(evicted.ID)
			s.markTerminalLocked(evicted, ErrCanceled, StatusCanceled)
		}
	}

	req.EnqueuedAt = s.clock.Now()
	req.seq = s.nextSeq
	s.nextSeq++
	s.queue.insert(req)
	if timeout := s.resolveQueueTimeout(opts.Timeout); timeout > 0 {
		id := req.ID
		req.queueTimer = s.clock.AfterFunc(timeout, func() { s.expire(id) })
	}
	s.dispatchLocked()
	s.mu.Unlock()

	if evicted != nil {
		recordOutcome(evicted.Endpoint, "canceled")
		s.logger.Debug("evicted queued request for higher-priority arrival",
			"evicted_id", evicted.ID,
			"evicted_priority", evicted.Priority.String(),
			"incoming_priority", opts.Priority.String(),
		)
		evicted.future.fail(ErrCanceled)
	}
	return fut
}

// Cancel removes a still-queued request.
//
// # Outputs
//
//   - bool: True when the request was found Pending and canceled. Dispatched
//     requests run to completion and return false.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	req := s.queue.remove(id)
	if req == nil {
		s.mu.Unlock()
		return false
	}
	s.markTerminalLocked(req, ErrCanceled, StatusCanceled)
	s.updateGaugesLocked()
	s.mu.Unlock()

	recordOutcome(req.Endpoint, "canceled")
	req.future.fail(ErrCanceled)
	return true
}

// Clear cancels every queued request. In-flight requests are unaffected.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	removed := s.queue.drain(nil)
	for _, r := range removed {
		s.markTerminalLocked(r, ErrCanceled, StatusCanceled)
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	for _, r := range removed {
		recordOutcome(r.Endpoint, "canceled")
		r.future.fail(ErrCanceled)
	}
}

// Close stops admission, cancels queued requests, and stops the health
// monitor. In-flight requests run to completion.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	removed := s.queue.drain(nil)
	for _, r := range removed {
		s.markTerminalLocked(r, ErrCanceled, StatusCanceled)
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	for _, r := range removed {
		recordOutcome(r.Endpoint, "canceled")
		r.future.fail(ErrCanceled)
	}
	s.monitor.Stop()
	s.logger.Info("scheduler closed", "canceled_queued", len(removed))
}

// =============================================================================
// Introspection
// =============================================================================

// Stats returns a point-in-time snapshot of scheduler state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	stats := Stats{
		QueueSize:      s.queue.len(),
		ActiveRequests: s.active,
		RequestCount:   s.requestCount,
		SuccessCount:   s.successCount,
		Uptime:         s.clock.Since(s.startedAt),
		IsHealthy:      true,
	}
	if s.requestCount > 0 {
		stats.FailureRate = float64(s.requestCount-s.successCount) / float64(s.requestCount)
	}
	if s.successCount > 0 {
		stats.AverageResponseTime = s.totalResponseTime / time.Duration(s.successCount)
	}
	s.mu.Unlock()

	if s.breaker != nil {
		stats.CircuitBreakerOpen = s.breaker.Open()
	}
	if s.monitor != nil {
		stats.IsHealthy = s.monitor.IsHealthy()
	}
	return stats
}

// History returns the bounded recent-request log, oldest first.
func (s *Scheduler) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.snapshot()
}

// =============================================================================
// Dispatch
// =============================================================================

// dispatchLocked starts queued requests while slots are free.
// Caller holds s.mu.
func (s *Scheduler) dispatchLocked() {
	for !s.closed && s.active < s.config.MaxConcurrentRequests {
		req := s.queue.popHead()
		if req == nil {
			break
		}
		if req.queueTimer != nil {
			req.queueTimer.Stop()
			req.queueTimer = nil
		}
		req.Status = StatusProcessing
		req.StartedAt = s.clock.Now()
		s.active++
		go s.execute(req)
	}
	s.updateGaugesLocked()
}

// execute runs one dispatched request, owning its concurrency slot until a
// terminal outcome or a scheduled retry releases it.
func (s *Scheduler) execute(req *Request) {
	ctx, span := tracer.Start(s.baseCtx, "scheduler.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("relay.endpoint", req.Endpoint),
		attribute.String("relay.request_id", req.ID),
		attribute.Int("relay.retry_count", req.RetryCount),
	)

	// The breaker may have tripped after admission; bypass-queue requests
	// reach here without ever passing the queue purge.
	if s.breaker != nil && !req.Options.BypassCircuitBreaker && !s.breaker.Allow() {
		s.failActive(req, ErrCircuitOpen, StatusFailed, "failed", false)
		return
	}

	// Retried members go out individually rather than re-coalescing.
	if s.batcher != nil && req.Options.Sink == nil && req.RetryCount == 0 &&
		s.batchable[req.Endpoint] {
		// The slot stays held while the group waits for its window.
		s.batcher.add(req)
		return
	}

	value, elapsed, err := s.call(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.onTransportFailure(req, err)
		return
	}
	s.onTransportSuccess(req, value, elapsed)
}

// call performs the transport exchange, upgrading to streaming when the
// request carries a sink and the transport supports it.
func (s *Scheduler) call(ctx context.Context, req *Request) (any, time.Duration, error) {
	start := s.clock.Now()
	var value any
	var err error
	if req.Options.Sink != nil {
		if st, ok := s.transport.(StreamingTransport); ok {
			value, err = st.SendStream(ctx, req.Endpoint, req.Payload, req.Options.Sink)
		} else {
			value, err = s.transport.Send(ctx, req.Endpoint, req.Payload)
		}
	} else {
		value, err = s.transport.Send(ctx, req.Endpoint, req.Payload)
	}
	return value, s.clock.Since(start), err
}

// =============================================================================
// Outcome Paths
// =============================================================================

// onTransportSuccess finalizes a successful exchange: breaker decay, cache
// write-through, counters, slot release, future completion.
func (s *Scheduler) onTransportSuccess(req *Request, value any, elapsed time.Duration) {
	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}

	if s.cacheUsable(req.Options) {
		if err := s.cache.Set(s.baseCtx, req.Options.CacheKey, value,
			s.resolveTTL(req.Options.CacheTTL), req.Options.CacheTags); err != nil {
			s.logger.Warn("cache write failed",
				"key", req.Options.CacheKey,
				"error", err.Error(),
			)
		}
	}

	s.mu.Lock()
	req.Status = StatusCompleted
	req.EndedAt = s.clock.Now()
	req.ResponseTime = elapsed
	s.requestCount++
	s.successCount++
	s.totalResponseTime += elapsed
	s.history.push(HistoryEntry{
		Timestamp:    req.EndedAt,
		Endpoint:     req.Endpoint,
		Success:      true,
		ResponseTime: elapsed,
	})
	s.active--
	s.dispatchLocked()
	s.mu.Unlock()

	recordOutcome(req.Endpoint, "success")
	recordLatency(req.Endpoint, elapsed.Seconds())
	req.future.complete(value)
}

// onTransportFailure routes a failed exchange through the retry controller.
// A scheduled retry frees the slot now; exhaustion finalizes via failActive.
func (s *Scheduler) onTransportFailure(req *Request, err error) {
	if s.retries.handleFailure(req, err) {
		recordRetry(req.Endpoint)
		s.mu.Lock()
		s.active--
		s.dispatchLocked()
		s.mu.Unlock()
	}
}

// failActive moves a Processing request to a terminal state and releases
// its slot. countBreaker adds the failure to breaker pressure.
func (s *Scheduler) failActive(req *Request, err error, status Status,
	outcome string, countBreaker bool) {
	if countBreaker && s.breaker != nil {
		s.breaker.RecordFailure()
	}

	s.mu.Lock()
	req.Status = status
	req.EndedAt = s.clock.Now()
	req.Err = err
	s.requestCount++
	s.history.push(HistoryEntry{
		Timestamp: req.EndedAt,
		Endpoint:  req.Endpoint,
		Success:   false,
		Error:     err.Error(),
	})
	s.active--
	s.dispatchLocked()
	s.mu.Unlock()

	recordOutcome(req.Endpoint, outcome)
	req.future.fail(err)
}

// markTerminalLocked records the terminal state of a still-queued request.
// Caller holds s.mu and fulfills the future after unlocking.
func (s *Scheduler) markTerminalLocked(req *Request, err error, status Status) {
	if req.queueTimer != nil {
		req.queueTimer.Stop()
		req.queueTimer = nil
	}
	req.Status = status
	req.EndedAt = s.clock.Now()
	req.Err = err
	s.requestCount++
	s.history.push(HistoryEntry{
		Timestamp: req.EndedAt,
		Endpoint:  req.Endpoint,
		Success:   false,
		Error:     err.Error(),
	})
}

// expire fails a request that is still queued when its timeout fires.
func (s *Scheduler) expire(id string) {
	s.mu.Lock()
	req := s.queue.remove(id)
	if req == nil {
		// Already dispatched or otherwise resolved.
		s.mu.Unlock()
		return
	}
	s.markTerminalLocked(req, ErrTimeout, StatusFailed)
	s.updateGaugesLocked()
	s.mu.Unlock()

	if s.breaker != nil && s.config.CircuitBreakerCountsTimeouts {
		s.breaker.RecordFailure()
	}
	recordOutcome(req.Endpoint, "timeout")
	s.logger.Debug("request timed out in queue",
		"request_id", req.ID,
		"endpoint", req.Endpoint,
	)
	req.future.fail(ErrTimeout)
}

// purgeQueued fails every queued non-bypass request when the circuit opens.
func (s *Scheduler) purgeQueued() {
	s.mu.Lock()
	removed := s.queue.drain(func(r *Request) bool {
		return r.Options.BypassCircuitBreaker
	})
	for _, r := range removed {
		s.markTerminalLocked(r, ErrCircuitOpen, StatusFailed)
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	for _, r := range removed {
		recordOutcome(r.Endpoint, "failed")
		r.future.fail(ErrCircuitOpen)
	}
	if len(removed) > 0 {
		s.logger.Warn("purged queued requests on circuit open", "count", len(removed))
	}
}

// readmit returns a retried request to the queue with its id and priority
// intact and a fresh admission sequence.
func (s *Scheduler) readmit(req *Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		req.future.fail(ErrSchedulerClosed)
		return
	}
	req.Status = StatusPending
	req.EnqueuedAt = s.clock.Now()
	req.seq = s.nextSeq
	s.nextSeq++
	s.queue.insert(req)
	if timeout := s.resolveQueueTimeout(req.Options.Timeout); timeout > 0 {
		id := req.ID
		req.queueTimer = s.clock.AfterFunc(timeout, func() { s.expire(id) })
	}
	s.dispatchLocked()
	s.mu.Unlock()
}

// recordCacheHit counts a cache fast-path response as an instant success.
func (s *Scheduler) recordCacheHit(endpoint string) {
	s.mu.Lock()
	s.requestCount++
	s.successCount++
	s.history.push(HistoryEntry{
		Timestamp: s.clock.Now(),
		Endpoint:  endpoint,
		Success:   true,
		Cached:    true,
	})
	s.mu.Unlock()
	recordOutcome(endpoint, "success")
}

// =============================================================================
// Resolution Helpers
// =============================================================================

// cacheUsable reports whether the cache participates for these options.
func (s *Scheduler) cacheUsable(opts SubmitOptions) bool {
	return s.config.CacheEnabled && s.cache != nil &&
		!opts.BypassCache && opts.Sink == nil && opts.CacheKey != ""
}

// resolveRetries resolves the per-request retry budget.
func (s *Scheduler) resolveRetries(override *int) int {
	if override != nil {
		if *override < 0 {
			return 0
		}
		return *override
	}
	return s.config.MaxRetries
}

// resolveQueueTimeout resolves the queued-item timeout: positive override
// wins, negative disables, zero falls back to the configured default.
func (s *Scheduler) resolveQueueTimeout(override time.Duration) time.Duration {
	if override < 0 {
		return 0
	}
	if override > 0 {
		return override
	}
	if s.config.RequestTimeout < 0 {
		return 0
	}
	return s.config.RequestTimeout
}

// resolveTTL resolves the cache TTL for a write-through.
func (s *Scheduler) resolveTTL(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return s.config.CacheTTL
}

// updateGaugesLocked refreshes the queue and in-flight gauges.
// Caller holds s.mu.
func (s *Scheduler) updateGaugesLocked() {
	queueDepth.Set(float64(s.queue.len()))
	activeRequests.Set(float64(s.active))
}
