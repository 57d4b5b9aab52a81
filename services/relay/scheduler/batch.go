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

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/pkg/logging"
)

// =============================================================================
// Batch Envelope Types
// =============================================================================

// BatchEnvelope is the payload of the single transport call a flushed group
// issues. Transports serialize it however the upstream expects.
type BatchEnvelope struct {
	// Requests holds every member's id and payload, in admission order.
	Requests []BatchItem `json:"requests"`
}

// BatchItem is one member of a BatchEnvelope.
type BatchItem struct {
	ID      string `json:"id"`
	Payload any    `json:"payload"`
}

// BatchDiscriminator lets a payload contribute a discriminant (such as a
// model name) to its batch key, so only compatible requests coalesce.
type BatchDiscriminator interface {
	BatchDiscriminant() string
}

// batchDiscriminant derives the discriminant for a payload: a
// BatchDiscriminator payload answers for itself; a map payload contributes
// its "model" field; anything else shares one group per endpoint.
func batchDiscriminant(payload any) string {
	switch p := payload.(type) {
	case BatchDiscriminator:
		return p.BatchDiscriminant()
	case map[string]any:
		if model, ok := p["model"].(string); ok {
			return model
		}
	}
	return ""
}

// =============================================================================
// Batching Aggregator
// =============================================================================

// batchGroup collects same-key requests arriving within one window.
//
// A group is flushed exactly once, at window expiry or at max size,
// whichever comes first.
type batchGroup struct {
	key         string
	endpoint    string
	members     []*Request
	windowStart time.Time
	timer       clock.Timer
}

// batchAggregator coalesces same-key requests into one transport call and
// demultiplexes the combined response back to the members.
//
// # Thread Safety
//
// Safe for concurrent use; group state is guarded by an internal mutex.
// Flushes run on whichever goroutine triggered them (the window timer or
// the member that filled the group).
type batchAggregator struct {
	window    time.Duration
	maxSize   int
	clock     clock.Clock
	logger    *logging.Logger
	transport Transport
	baseCtx   context.Context

	mu     sync.Mutex
	groups map[string]*batchGroup

	// deliver resolves one member with its share of the combined response.
	deliver func(req *Request, value any, elapsed time.Duration)

	// redeliver re-submits one member after a combined-call failure so it
	// gets its own retry accounting.
	redeliver func(req *Request, err error)

	// reject terminally fails one member (demux mismatch).
	reject func(req *Request, err error)
}

func newBatchAggregator(window time.Duration, maxSize int, transport Transport,
	clk clock.Clock, logger *logging.Logger, baseCtx context.Context,
	deliver func(*Request, any, time.Duration),
	redeliver func(*Request, error),
	reject func(*Request, error)) *batchAggregator {
	if window <= 0 {
		window = 50 * time.Millisecond
	}
	if maxSize <= 0 {
		maxSize = 8
	}
	return &batchAggregator{
		window:    window,
		maxSize:   maxSize,
		clock:     clk,
		logger:    logger,
		transport: transport,
		baseCtx:   baseCtx,
		groups:    make(map[string]*batchGroup),
		deliver:   deliver,
		redeliver: redeliver,
		reject:    reject,
	}
}

// add routes a dispatched request into its batch group.
//
// The first member of a new group starts the window timer. Reaching
// maxSize flushes immediately and stops the timer.
func (b *batchAggregator) add(req *Request) {
	key := req.Endpoint + "|" + batchDiscriminant(req.Payload)

	b.mu.Lock()
	g, ok := b.groups[key]
	if !ok {
		g = &batchGroup{
			key:         key,
			endpoint:    req.Endpoint,
			windowStart: b.clock.Now(),
		}
		b.groups[key] = g
		g.timer = b.clock.AfterFunc(b.window, func() { b.flushKey(key) })
	}
	g.members = append(g.members, req)

	if len(g.members) >= b.maxSize {
		delete(b.groups, key)
		g.timer.Stop()
		b.mu.Unlock()
		b.flush(g, "size")
		return
	}
	b.mu.Unlock()
}

// flushKey flushes the group for key if it is still pending.
func (b *batchAggregator) flushKey(key string) {
	b.mu.Lock()
	g, ok := b.groups[key]
	if ok {
		delete(b.groups, key)
	}
	b.mu.Unlock()

	if ok {
		b.flush(g, "window")
	}
}

// flush issues the single combined transport call and distributes outcomes.
func (b *batchAggregator) flush(g *batchGroup, reason string) {
	envelope := BatchEnvelope{Requests: make([]BatchItem, 0, len(g.members))}
	for _, m := range g.members {
		envelope.Requests = append(envelope.Requests, BatchItem{ID: m.ID, Payload: m.Payload})
	}

	b.logger.Debug("flushing batch group",
		"endpoint", g.endpoint,
		"members", len(g.members),
		"reason", reason,
	)
	recordBatchFlush(g.endpoint, reason, len(g.members))

	start := b.clock.Now()
	resp, err := b.transport.Send(b.baseCtx, g.endpoint, envelope)
	elapsed := b.clock.Since(start)

	if err != nil {
		// The combined call failed: every member goes back through its own
		// retry accounting, not the group as one unit.
		for _, m := range g.members {
			b.redeliver(m, err)
		}
		return
	}

	b.demux(g, resp, elapsed)
}

// demux distributes a combined response to the group members.
//
// Shapes are tried in strict precedence order:
//
//	(a) a positional array whose length matches the member count;
//	(b) a keyed "items" list matched to members by id;
//	(c) a single shared value broadcast to every member.
func (b *batchAggregator) demux(g *batchGroup, resp any, elapsed time.Duration) {
	// (a) positional
	if values, ok := resp.([]any); ok && len(values) == len(g.members) {
		for i, m := range g.members {
			b.deliver(m, values[i], elapsed)
		}
		return
	}

	// (b) keyed items list
	if byID, ok := keyedItems(resp); ok {
		for _, m := range g.members {
			if value, found := byID[m.ID]; found {
				b.deliver(m, value, elapsed)
			} else {
				b.reject(m, ErrNoBatchResult)
			}
		}
		return
	}

	// (c) broadcast
	for _, m := range g.members {
		b.deliver(m, resp, elapsed)
	}
}

// keyedItems extracts an "items" list keyed by member id, when the
// response has that shape.
func keyedItems(resp any) (map[string]any, bool) {
	obj, ok := resp.(map[string]any)
	if !ok {
		return nil, false
	}
	items, ok := obj["items"].([]any)
	if !ok {
		return nil, false
	}

	byID := make(map[string]any, len(items))
	matched := false
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, ok := item["id"].(string)
		if !ok {
			continue
		}
		byID[id] = item
		matched = true
	}
	if !matched {
		return nil, false
	}
	return byID, true
}

// pendingGroups returns the number of unflushed groups. Used by tests and
// the stats snapshot.
func (b *batchAggregator) pendingGroups() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups)
}
