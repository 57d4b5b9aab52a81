// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/pkg/logging"

	"github.com/AleutianAI/relay/services/relay/scheduler"
)

// =============================================================================
// Connectivity Observation
// =============================================================================

// ConnectivityObserver reports whether the upstream is reachable and
// notifies subscribers on transitions.
type ConnectivityObserver interface {
	// IsOnline reports current connectivity.
	IsOnline() bool

	// Subscribe registers fn for transition events. The returned function
	// unsubscribes.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// ManualObserver is a ConnectivityObserver driven by explicit SetOnline
// calls. Used by tests and by hosts that already know their link state.
type ManualObserver struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

// NewManualObserver creates an observer with the given initial state.
func NewManualObserver(online bool) *ManualObserver {
	return &ManualObserver{online: online, subs: make(map[int]func(bool))}
}

// IsOnline reports the current state.
func (o *ManualObserver) IsOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

// SetOnline updates the state, notifying subscribers on a change.
// Callbacks run synchronously on the calling goroutine.
func (o *ManualObserver) SetOnline(online bool) {
	o.mu.Lock()
	if o.online == online {
		o.mu.Unlock()
		return
	}
	o.online = online
	subs := make([]func(bool), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for transitions.
func (o *ManualObserver) Subscribe(fn func(online bool)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// PollingObserver probes a health URL on an interval and derives
// connectivity from whether the probe succeeds.
type PollingObserver struct {
	*ManualObserver

	client   *http.Client
	url      string
	interval time.Duration
	clock    clock.Clock
	logger   *logging.Logger

	ticker  clock.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewPollingObserver creates a stopped observer; call Start to begin
// probing. The observer assumes online until a probe says otherwise.
func NewPollingObserver(url string, interval time.Duration,
	logger *logging.Logger, clk clock.Clock) *PollingObserver {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &PollingObserver{
		ManualObserver: NewManualObserver(true),
		client:         &http.Client{Timeout: 5 * time.Second},
		url:            url,
		interval:       interval,
		clock:          clk,
		logger:         logger,
	}
}

// Start begins periodic probing.
func (o *PollingObserver) Start() {
	if o.started {
		return
	}
	o.started = true
	o.done = make(chan struct{})
	o.ticker = o.clock.NewTicker(o.interval)
	o.wg.Add(1)
	go o.run()
}

// Stop ends probing; the last observed state sticks.
func (o *PollingObserver) Stop() {
	if !o.started {
		return
	}
	o.started = false
	o.ticker.Stop()
	close(o.done)
	o.wg.Wait()
}

func (o *PollingObserver) run() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ticker.C():
			o.probe()
		case <-o.done:
			return
		}
	}
}

func (o *PollingObserver) probe() {
	req, err := http.NewRequest(http.MethodGet, o.url, nil)
	if err != nil {
		return
	}
	resp, err := o.client.Do(req)
	online := err == nil && resp.StatusCode < 500
	if resp != nil {
		resp.Body.Close()
	}
	if online != o.IsOnline() {
		o.logger.Info("connectivity changed", "online", online, "probe_url", o.url)
	}
	o.SetOnline(online)
}

// =============================================================================
// Offline Queue
// =============================================================================

// offlineEntry is one buffered facade call awaiting replay.
type offlineEntry struct {
	priority scheduler.Priority
	seq      uint64

	// replay re-invokes the facade call; its result resolves
	// independently of the original caller.
	replay func(ctx context.Context)
}

// offlineQueue buffers facade calls while connectivity is down.
//
// Entries drain priority descending, FIFO within a priority, mirroring the
// scheduler's dispatch order.
type offlineQueue struct {
	mu      sync.Mutex
	limit   int
	nextSeq uint64
	entries []offlineEntry
}

func newOfflineQueue(limit int) *offlineQueue {
	if limit <= 0 {
		limit = 100
	}
	return &offlineQueue{limit: limit}
}

// push buffers one call. Returns false when the buffer is full.
func (q *offlineQueue) push(priority scheduler.Priority, replay func(ctx context.Context)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.limit {
		return false
	}
	q.entries = append(q.entries, offlineEntry{
		priority: priority,
		seq:      q.nextSeq,
		replay:   replay,
	})
	q.nextSeq++
	return true
}

// drain removes and returns all entries in replay order.
func (q *offlineQueue) drain() []offlineEntry {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}

// len returns the number of buffered calls.
func (q *offlineQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
