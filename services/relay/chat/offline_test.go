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
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/services/relay/scheduler"
)

func TestManualObserver_NotifiesOnChangeOnly(t *testing.T) {
	obs := NewManualObserver(true)

	var events []bool
	obs.Subscribe(func(online bool) { events = append(events, online) })

	obs.SetOnline(true) // no change, no event
	obs.SetOnline(false)
	obs.SetOnline(false) // no change, no event
	obs.SetOnline(true)

	assert.Equal(t, []bool{false, true}, events)
	assert.True(t, obs.IsOnline())
}

func TestManualObserver_UnsubscribeStopsEvents(t *testing.T) {
	obs := NewManualObserver(true)

	var count int
	unsubscribe := obs.Subscribe(func(bool) { count++ })

	obs.SetOnline(false)
	unsubscribe()
	obs.SetOnline(true)

	assert.Equal(t, 1, count)
}

func TestOfflineQueue_DrainsPriorityThenFIFO(t *testing.T) {
	q := newOfflineQueue(10)

	var order []string
	record := func(name string) func(context.Context) {
		return func(context.Context) { order = append(order, name) }
	}

	require.True(t, q.push(scheduler.PriorityLow, record("low")))
	require.True(t, q.push(scheduler.PriorityNormal, record("normal-1")))
	require.True(t, q.push(scheduler.PriorityCritical, record("critical")))
	require.True(t, q.push(scheduler.PriorityNormal, record("normal-2")))

	for _, entry := range q.drain() {
		entry.replay(context.Background())
	}
	assert.Equal(t, []string{"critical", "normal-1", "normal-2", "low"}, order)
	assert.Equal(t, 0, q.len())
}

func TestOfflineQueue_RejectsWhenFull(t *testing.T) {
	q := newOfflineQueue(2)
	noop := func(context.Context) {}

	assert.True(t, q.push(scheduler.PriorityNormal, noop))
	assert.True(t, q.push(scheduler.PriorityNormal, noop))
	assert.False(t, q.push(scheduler.PriorityCritical, noop))
	assert.Equal(t, 2, q.len())
}

func TestPollingObserver_DerivesStateFromProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	fc := clock.NewFake(time.Unix(1700000000, 0))
	obs := NewPollingObserver(server.URL+"/health", 10*time.Second, quietLogger(), fc)
	obs.Start()
	defer obs.Stop()

	// Assumed online before the first probe.
	assert.True(t, obs.IsOnline())

	status.Store(http.StatusInternalServerError)
	fc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return !obs.IsOnline() },
		2*time.Second, 5*time.Millisecond)

	status.Store(http.StatusOK)
	fc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return obs.IsOnline() },
		2*time.Second, 5*time.Millisecond)
}

func TestPollingObserver_UnreachableHostGoesOffline(t *testing.T) {
	fc := clock.NewFake(time.Unix(1700000000, 0))
	obs := NewPollingObserver("http://127.0.0.1:1/health", 10*time.Second, quietLogger(), fc)
	obs.Start()
	defer obs.Stop()

	fc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return !obs.IsOnline() },
		5*time.Second, 5*time.Millisecond)
}
