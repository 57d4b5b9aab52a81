// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

// ringBuffer is a fixed-size circular buffer.
//
// # Description
//
// O(1) push with bounded memory. When full, the oldest item is overwritten.
// Used to keep the last N request history entries in memory.
//
// # Thread Safety
//
// NOT safe for concurrent use; the scheduler synchronizes access.
type ringBuffer[T any] struct {
	data  []T
	head  int // next write position
	tail  int // first element position
	count int
	cap   int
	full  bool
}

// newRingBuffer creates a ring buffer with the given capacity.
func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &ringBuffer[T]{
		data: make([]T, capacity),
		cap:  capacity,
	}
}

// push adds an item, evicting the oldest when full.
func (r *ringBuffer[T]) push(item T) {
	r.data[r.head] = item
	r.head = (r.head + 1) % r.cap

	if r.full {
		r.tail = (r.tail + 1) % r.cap
	} else {
		r.count++
		if r.count == r.cap {
			r.full = true
		}
	}
}

// len returns the current number of items.
func (r *ringBuffer[T]) len() int { return r.count }

// snapshot returns the items oldest-first as a new slice.
func (r *ringBuffer[T]) snapshot() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.data[(r.tail+i)%r.cap])
	}
	return out
}
