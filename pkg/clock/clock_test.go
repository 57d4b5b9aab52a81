// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_AfterFunc_FiresOnAdvance(t *testing.T) {
	fc := NewFake(time.Unix(1700000000, 0))

	fired := 0
	fc.AfterFunc(5*time.Second, func() { fired++ })

	fc.Advance(4 * time.Second)
	assert.Equal(t, 0, fired, "timer must not fire before its deadline")

	fc.Advance(1 * time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, fc.PendingTimers())
}

func TestFakeClock_AfterFunc_Stop(t *testing.T) {
	fc := NewFake(time.Unix(1700000000, 0))

	fired := false
	timer := fc.AfterFunc(time.Second, func() { fired = true })

	require.True(t, timer.Stop())
	fc.Advance(2 * time.Second)

	assert.False(t, fired)
	assert.False(t, timer.Stop(), "second Stop reports already stopped")
}

func TestFakeClock_Advance_FiresInDeadlineOrder(t *testing.T) {
	fc := NewFake(time.Unix(1700000000, 0))

	var order []string
	fc.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	fc.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	fc.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	fc.Advance(5 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFakeClock_Advance_NestedTimerInWindow(t *testing.T) {
	fc := NewFake(time.Unix(1700000000, 0))

	var order []string
	fc.AfterFunc(1*time.Second, func() {
		order = append(order, "outer")
		// Scheduled inside the advanced window, so it fires in the same Advance.
		fc.AfterFunc(1*time.Second, func() { order = append(order, "inner") })
	})

	fc.Advance(3 * time.Second)

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestFakeClock_NowAdvancesToDeadlineInsideCallback(t *testing.T) {
	start := time.Unix(1700000000, 0)
	fc := NewFake(start)

	var observed time.Time
	fc.AfterFunc(2*time.Second, func() { observed = fc.Now() })

	fc.Advance(10 * time.Second)

	assert.Equal(t, start.Add(2*time.Second), observed)
	assert.Equal(t, start.Add(10*time.Second), fc.Now())
}

func TestFakeClock_Ticker(t *testing.T) {
	fc := NewFake(time.Unix(1700000000, 0))

	ticker := fc.NewTicker(time.Second)
	defer ticker.Stop()

	fc.Advance(3 * time.Second)

	count := 0
	for {
		select {
		case <-ticker.C():
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 3, count)
}

func TestFakeClock_TickerStop(t *testing.T) {
	fc := NewFake(time.Unix(1700000000, 0))

	ticker := fc.NewTicker(time.Second)
	ticker.Stop()
	fc.Advance(5 * time.Second)

	select {
	case <-ticker.C():
		t.Fatal("stopped ticker must not tick")
	default:
	}
}

func TestRealClock_Smoke(t *testing.T) {
	c := Real()

	before := c.Now()
	assert.False(t, before.IsZero())
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))

	done := make(chan struct{})
	timer := c.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
	assert.False(t, timer.Stop())
}
