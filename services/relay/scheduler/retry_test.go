// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relay/pkg/clock"
)

func TestRetryController_DelayDoublesPerAttempt(t *testing.T) {
	rc := newRetryController(time.Second, clock.NewFake(time.Unix(0, 0)), quietLogger(), nil, nil)

	assert.Equal(t, time.Second, rc.delayFor(0))
	assert.Equal(t, 2*time.Second, rc.delayFor(1))
	assert.Equal(t, 4*time.Second, rc.delayFor(2))
	assert.Equal(t, 8*time.Second, rc.delayFor(3))
}

func TestRetryController_ReadmitsAfterBackoff(t *testing.T) {
	fc := clock.NewFake(time.Unix(1700000000, 0))
	var readmitted []*Request
	rc := newRetryController(time.Second, fc, quietLogger(),
		func(r *Request) { readmitted = append(readmitted, r) },
		func(*Request, error) { t.Fatal("should not finalize") },
	)

	req := &Request{ID: "r1", maxRetries: 2, future: NewFuture()}
	require.True(t, rc.handleFailure(req, errUpstream))
	assert.Equal(t, 1, req.RetryCount)
	assert.Empty(t, readmitted)

	// First retry waits exactly one base delay.
	fc.Advance(time.Second - time.Millisecond)
	assert.Empty(t, readmitted)
	fc.Advance(time.Millisecond)
	require.Len(t, readmitted, 1)
	assert.Same(t, req, readmitted[0])

	// Second retry doubles.
	require.True(t, rc.handleFailure(req, errUpstream))
	fc.Advance(2 * time.Second)
	assert.Len(t, readmitted, 2)
}

func TestRetryController_FinalizesWhenExhausted(t *testing.T) {
	fc := clock.NewFake(time.Unix(1700000000, 0))
	var finalErr error
	rc := newRetryController(time.Second, fc, quietLogger(),
		func(*Request) { t.Fatal("should not readmit") },
		func(_ *Request, err error) { finalErr = err },
	)

	req := &Request{ID: "r1", maxRetries: 0, future: NewFuture()}
	assert.False(t, rc.handleFailure(req, errUpstream))
	assert.ErrorIs(t, finalErr, errUpstream)
	assert.Equal(t, 0, fc.PendingTimers())
}

func TestRetryController_DefaultBaseDelay(t *testing.T) {
	rc := newRetryController(0, clock.NewFake(time.Unix(0, 0)), quietLogger(), nil, nil)
	assert.Equal(t, time.Second, rc.baseDelay)
}
