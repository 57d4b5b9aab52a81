// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache provides the in-memory TTL + tag response cache the
// scheduler and client facade consult before touching the transport.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/pkg/logging"
)

// Config configures the in-memory cache.
type Config struct {
	// DefaultTTL applies when Set receives a non-positive TTL.
	// Default: 5 minutes
	DefaultTTL time.Duration

	// MaxEntries caps the cache. Inserting past the cap evicts the entry
	// closest to expiry.
	// Default: 1000
	MaxEntries int

	// SweepInterval is how often the background sweep removes expired
	// entries. Expiry is also enforced lazily on Get. Negative disables
	// the sweep.
	// Default: 1 minute
	SweepInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:    5 * time.Minute,
		MaxEntries:    1000,
		SweepInterval: time.Minute,
	}
}

// Stats is a point-in-time cache snapshot.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type entry struct {
	value     any
	expiresAt time.Time
	tags      []string
}

// Memory is an in-memory key/value store with per-entry TTL and tag-based
// bulk invalidation.
//
// # Description
//
// Values expire lazily on Get and eagerly on a background sweep. Tags form
// a secondary index so one call can drop every entry for, say, a session.
// Nothing persists across restarts.
//
// # Thread Safety
//
// Memory is safe for concurrent use.
type Memory struct {
	config Config
	clock  clock.Clock
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]*entry
	// byTag indexes keys per tag for bulk invalidation.
	byTag     map[string]map[string]struct{}
	hits      int64
	misses    int64
	evictions int64

	sweeper clock.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewMemory creates a cache using the real clock.
func NewMemory(config Config, logger *logging.Logger) *Memory {
	return NewMemoryWithClock(config, logger, clock.Real())
}

// NewMemoryWithClock is NewMemory with an injected time source.
func NewMemoryWithClock(config Config, logger *logging.Logger, clk clock.Clock) *Memory {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}

	m := &Memory{
		config:  config,
		clock:   clk,
		logger:  logger,
		entries: make(map[string]*entry),
		byTag:   make(map[string]map[string]struct{}),
		done:    make(chan struct{}),
	}
	if config.SweepInterval > 0 {
		m.sweeper = clk.NewTicker(config.SweepInterval)
		m.wg.Add(1)
		go m.sweepLoop()
	}
	return m
}

// Get returns the value for key, or false when absent or expired.
func (m *Memory) Get(ctx context.Context, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false
	}
	if !e.expiresAt.After(m.clock.Now()) {
		m.removeLocked(key, e)
		m.misses++
		return nil, false
	}
	m.hits++
	return e.value, true
}

// Set stores value under key.
//
// # Inputs
//
//   - ttl: Entry lifetime; non-positive uses DefaultTTL.
//   - tags: Invalidation tags; DeleteByTag on any of them removes the entry.
func (m *Memory) Set(ctx context.Context, key string, value any,
	ttl time.Duration, tags []string) error {
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[key]; ok {
		m.removeLocked(key, old)
	}
	if len(m.entries) >= m.config.MaxEntries {
		m.evictSoonestLocked()
	}

	m.entries[key] = &entry{
		value:     value,
		expiresAt: m.clock.Now().Add(ttl),
		tags:      tags,
	}
	for _, tag := range tags {
		keys, ok := m.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// Delete removes one key. Returns whether it was present.
func (m *Memory) Delete(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	m.removeLocked(key, e)
	return true
}

// DeleteByTag removes every entry carrying tag. Returns the count removed.
func (m *Memory) DeleteByTag(ctx context.Context, tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, ok := m.byTag[tag]
	if !ok {
		return 0
	}
	removed := 0
	for key := range keys {
		if e, present := m.entries[key]; present {
			m.removeLocked(key, e)
			removed++
		}
	}
	delete(m.byTag, tag)
	return removed
}

// Clear empties the cache.
func (m *Memory) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
	m.byTag = make(map[string]map[string]struct{})
}

// Stats returns a point-in-time snapshot.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Entries:   len(m.entries),
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
	}
}

// Close stops the background sweep. The cache stays usable; expiry is then
// lazy only.
func (m *Memory) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	if m.sweeper != nil {
		m.sweeper.Stop()
		close(m.done)
		m.wg.Wait()
	}
}

// removeLocked deletes an entry and its tag index rows. Caller holds m.mu.
func (m *Memory) removeLocked(key string, e *entry) {
	delete(m.entries, key)
	for _, tag := range e.tags {
		if keys, ok := m.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.byTag, tag)
			}
		}
	}
}

// evictSoonestLocked drops the entry closest to expiry to make room.
// Caller holds m.mu.
func (m *Memory) evictSoonestLocked() {
	var victimKey string
	var victim *entry
	for key, e := range m.entries {
		if victim == nil || e.expiresAt.Before(victim.expiresAt) {
			victimKey = key
			victim = e
		}
	}
	if victim != nil {
		m.removeLocked(victimKey, victim)
		m.evictions++
	}
}

// sweepLoop removes expired entries on the sweep cadence.
func (m *Memory) sweepLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.sweeper.C():
			m.sweep()
		case <-m.done:
			return
		}
	}
}

func (m *Memory) sweep() {
	now := m.clock.Now()
	m.mu.Lock()
	removed := 0
	for key, e := range m.entries {
		if !e.expiresAt.After(now) {
			m.removeLocked(key, e)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Debug("cache sweep removed expired entries", "count", removed)
	}
}
