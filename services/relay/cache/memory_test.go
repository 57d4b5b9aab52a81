// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/pkg/logging"
)

func newTestCache(t *testing.T, config Config) (*Memory, *clock.FakeClock) {
	t.Helper()
	fc := clock.NewFake(time.Unix(1700000000, 0))
	logger := logging.New(logging.Config{Level: logging.LevelError, Quiet: true})
	m := NewMemoryWithClock(config, logger, fc)
	t.Cleanup(m.Close)
	return m, fc
}

func TestMemory_SetAndGet(t *testing.T) {
	m, _ := newTestCache(t, Config{})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1", time.Minute, nil))
	value, ok := m.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "v1", value)

	_, ok = m.Get(ctx, "absent")
	assert.False(t, ok)
}

func TestMemory_TTLExpiryIsLazy(t *testing.T) {
	m, fc := newTestCache(t, Config{SweepInterval: -1})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1", time.Minute, nil))

	fc.Advance(time.Minute - time.Second)
	_, ok := m.Get(ctx, "k1")
	assert.True(t, ok)

	fc.Advance(time.Second)
	_, ok = m.Get(ctx, "k1")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Stats().Entries)
}

func TestMemory_BackgroundSweepRemovesExpired(t *testing.T) {
	m, fc := newTestCache(t, Config{SweepInterval: time.Minute})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", "v", time.Second, nil))
	require.NoError(t, m.Set(ctx, "long", "v", time.Hour, nil))

	fc.Advance(time.Minute)
	require.Eventually(t, func() bool {
		return m.Stats().Entries == 1
	}, time.Second, time.Millisecond)

	_, ok := m.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemory_DeleteByTag(t *testing.T) {
	m, _ := newTestCache(t, Config{})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "msg1", "a", time.Minute, []string{"session:s1", "chat"}))
	require.NoError(t, m.Set(ctx, "msg2", "b", time.Minute, []string{"session:s1"}))
	require.NoError(t, m.Set(ctx, "msg3", "c", time.Minute, []string{"session:s2"}))

	assert.Equal(t, 2, m.DeleteByTag(ctx, "session:s1"))
	_, ok := m.Get(ctx, "msg1")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "msg3")
	assert.True(t, ok)

	// Already gone; its other tag no longer matches anything.
	assert.Equal(t, 0, m.DeleteByTag(ctx, "chat"))
}

func TestMemory_DefaultTTLApplied(t *testing.T) {
	m, fc := newTestCache(t, Config{DefaultTTL: 10 * time.Second, SweepInterval: -1})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0, nil))
	fc.Advance(9 * time.Second)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	fc.Advance(time.Second)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_MaxEntriesEvictsSoonestExpiring(t *testing.T) {
	m, _ := newTestCache(t, Config{MaxEntries: 2, SweepInterval: -1})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "soon", "v", time.Second, nil))
	require.NoError(t, m.Set(ctx, "later", "v", time.Hour, nil))
	require.NoError(t, m.Set(ctx, "new", "v", time.Minute, nil))

	_, ok := m.Get(ctx, "soon")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "later")
	assert.True(t, ok)
	assert.Equal(t, int64(1), m.Stats().Evictions)
}

func TestMemory_OverwriteReplacesTags(t *testing.T) {
	m, _ := newTestCache(t, Config{})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v1", time.Minute, []string{"old"}))
	require.NoError(t, m.Set(ctx, "k", "v2", time.Minute, []string{"new"}))

	assert.Equal(t, 0, m.DeleteByTag(ctx, "old"))
	value, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v2", value)
	assert.Equal(t, 1, m.DeleteByTag(ctx, "new"))
}

func TestMemory_ClearAndDelete(t *testing.T) {
	m, _ := newTestCache(t, Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), i, time.Minute, nil))
	}
	assert.True(t, m.Delete(ctx, "k0"))
	assert.False(t, m.Delete(ctx, "k0"))

	m.Clear(ctx)
	assert.Equal(t, 0, m.Stats().Entries)
}

func TestMemory_StatsCountHitsAndMisses(t *testing.T) {
	m, _ := newTestCache(t, Config{})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute, nil))
	m.Get(ctx, "k")
	m.Get(ctx, "k")
	m.Get(ctx, "nope")

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
