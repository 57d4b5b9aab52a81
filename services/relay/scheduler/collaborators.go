// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Collaborator Interfaces
// -----------------------------------------------------------------------------

// Transport performs one request/response exchange with the upstream.
//
// # Description
//
// The scheduler treats the transport as a black box: any error it returns
// is failure pressure for the retry controller and the circuit breaker.
// Implementations live in services/relay/transport; tests inject mocks.
//
// # Thread Safety
//
// Send is called concurrently up to the scheduler's concurrency limit.
type Transport interface {
	// Send exchanges one request. The payload and response are opaque to
	// the scheduler.
	Send(ctx context.Context, endpoint string, payload any) (any, error)
}

// StreamingTransport is implemented by transports that can pipe a response
// incrementally to a caller-supplied sink.
//
// The scheduler upgrades to SendStream when the request carries a Sink and
// the transport implements this interface; otherwise streaming requests
// fall back to a buffered Send.
type StreamingTransport interface {
	Transport

	// SendStream exchanges one request, delivering chunks to sink as they
	// arrive. The returned value is the accumulated final response.
	SendStream(ctx context.Context, endpoint string, payload any, sink StreamSink) (any, error)
}

// Cache is the subset of the cache collaborator the scheduler consumes.
//
// services/relay/cache provides the full implementation, including
// tag-based bulk invalidation used by the client facade.
type Cache interface {
	// Get returns the cached value for key, or false when absent/expired.
	Get(ctx context.Context, key string) (any, bool)

	// Set stores value under key with the given TTL and invalidation tags.
	Set(ctx context.Context, key string, value any, ttl time.Duration, tags []string) error
}
