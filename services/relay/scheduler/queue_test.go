// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queuedRequest(id string, priority Priority, seq uint64) *Request {
	return &Request{ID: id, Priority: priority, seq: seq, future: NewFuture()}
}

func TestRequestQueue_PriorityThenFIFO(t *testing.T) {
	q := &requestQueue{}
	q.insert(queuedRequest("low", PriorityLow, 1))
	q.insert(queuedRequest("normal-1", PriorityNormal, 2))
	q.insert(queuedRequest("critical", PriorityCritical, 3))
	q.insert(queuedRequest("normal-2", PriorityNormal, 4))
	q.insert(queuedRequest("high", PriorityHigh, 5))

	var order []string
	for q.len() > 0 {
		order = append(order, q.popHead().ID)
	}
	assert.Equal(t, []string{"critical", "high", "normal-1", "normal-2", "low"}, order)
}

func TestRequestQueue_PeekTailIsLowestNewest(t *testing.T) {
	q := &requestQueue{}
	assert.Nil(t, q.peekTail())

	q.insert(queuedRequest("high", PriorityHigh, 1))
	q.insert(queuedRequest("low-old", PriorityLow, 2))
	q.insert(queuedRequest("low-new", PriorityLow, 3))

	require.NotNil(t, q.peekTail())
	assert.Equal(t, "low-new", q.peekTail().ID)
	// Peek does not remove.
	assert.Equal(t, 3, q.len())
}

func TestRequestQueue_Remove(t *testing.T) {
	q := &requestQueue{}
	q.insert(queuedRequest("a", PriorityNormal, 1))
	q.insert(queuedRequest("b", PriorityNormal, 2))

	removed := q.remove("a")
	require.NotNil(t, removed)
	assert.Equal(t, "a", removed.ID)
	assert.Nil(t, q.remove("a"))
	assert.Equal(t, 1, q.len())
}

func TestRequestQueue_DrainKeepsMatching(t *testing.T) {
	q := &requestQueue{}
	bypass := queuedRequest("bypass", PriorityNormal, 1)
	bypass.Options.BypassCircuitBreaker = true
	q.insert(bypass)
	q.insert(queuedRequest("plain-1", PriorityNormal, 2))
	q.insert(queuedRequest("plain-2", PriorityLow, 3))

	removed := q.drain(func(r *Request) bool { return r.Options.BypassCircuitBreaker })
	assert.Len(t, removed, 2)
	require.Equal(t, 1, q.len())
	assert.Equal(t, "bypass", q.popHead().ID)
}

func TestRequestQueue_DrainAll(t *testing.T) {
	q := &requestQueue{}
	q.insert(queuedRequest("a", PriorityNormal, 1))
	q.insert(queuedRequest("b", PriorityHigh, 2))

	removed := q.drain(nil)
	assert.Len(t, removed, 2)
	assert.Equal(t, 0, q.len())
	assert.Nil(t, q.popHead())
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	rb := newRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.push(i)
	}
	assert.Equal(t, 3, rb.len())
	assert.Equal(t, []int{3, 4, 5}, rb.snapshot())
}

func TestRingBuffer_PartialFill(t *testing.T) {
	rb := newRingBuffer[string](4)
	rb.push("a")
	rb.push("b")
	assert.Equal(t, []string{"a", "b"}, rb.snapshot())
}
