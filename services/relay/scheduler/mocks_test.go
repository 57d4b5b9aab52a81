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
)

// mockCall is one recorded transport exchange.
type mockCall struct {
	endpoint string
	payload  any
}

// mockTransport is a scriptable Transport double.
//
// respond decides the outcome per call; a nil respond returns ("ok", nil).
// A non-nil gate blocks each call until the test sends on it, which lets
// tests hold concurrency slots open. callCh, when non-nil, receives one
// notification per call so tests can synchronize on call arrival.
type mockTransport struct {
	mu      sync.Mutex
	calls   []mockCall
	active  int
	peak    int
	respond func(endpoint string, payload any) (any, error)
	gate    chan struct{}
	callCh  chan mockCall
}

func (m *mockTransport) Send(ctx context.Context, endpoint string, payload any) (any, error) {
	m.mu.Lock()
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
	call := mockCall{endpoint: endpoint, payload: payload}
	m.calls = append(m.calls, call)
	respond := m.respond
	gate := m.gate
	callCh := m.callCh
	m.mu.Unlock()

	if callCh != nil {
		callCh <- call
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	m.active--
	m.mu.Unlock()

	if respond != nil {
		return respond(endpoint, payload)
	}
	return "ok", nil
}

func (m *mockTransport) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockTransport) callAt(i int) mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

func (m *mockTransport) peakActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// mockStreamTransport adds SendStream on top of mockTransport.
type mockStreamTransport struct {
	mockTransport
	chunks [][]byte
}

func (m *mockStreamTransport) SendStream(ctx context.Context, endpoint string,
	payload any, sink StreamSink) (any, error) {
	var final []byte
	for _, chunk := range m.chunks {
		if err := sink(chunk); err != nil {
			return nil, err
		}
		final = append(final, chunk...)
	}
	return string(final), nil
}

// mockSet is one recorded cache write.
type mockSet struct {
	key   string
	value any
	ttl   time.Duration
	tags  []string
}

// mockCache is an in-memory Cache double that records writes.
type mockCache struct {
	mu   sync.Mutex
	data map[string]any
	sets []mockSet
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]any)}
}

func (m *mockCache) Get(ctx context.Context, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *mockCache) Set(ctx context.Context, key string, value any,
	ttl time.Duration, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets = append(m.sets, mockSet{key: key, value: value, ttl: ttl, tags: tags})
	return nil
}

func (m *mockCache) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sets)
}

func (m *mockCache) setAt(i int) mockSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[i]
}

// Compile-time interface checks.
var (
	_ Transport          = (*mockTransport)(nil)
	_ StreamingTransport = (*mockStreamTransport)(nil)
	_ Cache              = (*mockCache)(nil)
)
