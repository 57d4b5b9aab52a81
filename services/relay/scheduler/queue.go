// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import "sort"

// requestQueue keeps pending requests ordered by priority descending, then
// admission sequence ascending (FIFO within equal priority).
//
// NOT safe for concurrent use; the scheduler serializes access under its
// mutex, since dispatch decisions read-then-write shared counters.
type requestQueue struct {
	items []*Request
}

// len returns the number of queued requests.
func (q *requestQueue) len() int { return len(q.items) }

// insert places r at its ordered position.
func (q *requestQueue) insert(r *Request) {
	i := sort.Search(len(q.items), func(i int) bool {
		other := q.items[i]
		if other.Priority != r.Priority {
			return other.Priority < r.Priority
		}
		return other.seq > r.seq
	})
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = r
}

// popHead removes and returns the highest-priority, oldest request.
func (q *requestQueue) popHead() *Request {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head
}

// peekTail returns the lowest-priority, newest request without removing it.
func (q *requestQueue) peekTail() *Request {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[len(q.items)-1]
}

// remove deletes the request with the given id. Returns it, or nil.
func (q *requestQueue) remove(id string) *Request {
	for i, r := range q.items {
		if r.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return r
		}
	}
	return nil
}

// drain removes and returns every request matching keep==false.
//
// Requests for which keep returns true stay queued in order.
func (q *requestQueue) drain(keep func(*Request) bool) []*Request {
	var removed []*Request
	kept := q.items[:0]
	for _, r := range q.items {
		if keep != nil && keep(r) {
			kept = append(kept, r)
		} else {
			removed = append(removed, r)
		}
	}
	// Clear the tail so drained requests are collectable.
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return removed
}
