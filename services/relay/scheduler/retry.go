// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"time"

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/pkg/logging"
)

// retryController schedules redelivery of failed requests with exponential
// backoff.
//
// # Description
//
// The n-th retry waits BaseDelay × 2^(n-1): the first retry waits one base
// delay, the second two, the third four. Re-admission preserves the
// request's id and priority. When the budget is exhausted the request is
// handed back to the scheduler for final failure accounting.
type retryController struct {
	baseDelay time.Duration
	clock     clock.Clock
	logger    *logging.Logger

	// readmit puts a retried request back on the scheduler queue.
	readmit func(*Request)

	// finalize records the terminal failure of an exhausted request.
	finalize func(*Request, error)
}

func newRetryController(baseDelay time.Duration, clk clock.Clock, logger *logging.Logger,
	readmit func(*Request), finalize func(*Request, error)) *retryController {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &retryController{
		baseDelay: baseDelay,
		clock:     clk,
		logger:    logger,
		readmit:   readmit,
		finalize:  finalize,
	}
}

// handleFailure routes a transport failure to either a scheduled retry or
// final failure.
//
// Returns true when a retry was scheduled.
func (rc *retryController) handleFailure(req *Request, err error) bool {
	if req.RetryCount >= req.maxRetries {
		rc.logger.Warn("retries exhausted",
			"request_id", req.ID,
			"endpoint", req.Endpoint,
			"retries", req.RetryCount,
			"error", err.Error(),
		)
		rc.finalize(req, err)
		return false
	}

	delay := rc.delayFor(req.RetryCount)
	req.RetryCount++

	rc.logger.Debug("retry scheduled",
		"request_id", req.ID,
		"endpoint", req.Endpoint,
		"attempt", req.RetryCount,
		"delay", delay,
	)

	rc.clock.AfterFunc(delay, func() { rc.readmit(req) })
	return true
}

// delayFor computes the backoff before the retry following `consumed`
// prior retries: baseDelay × 2^consumed.
func (rc *retryController) delayFor(consumed int) time.Duration {
	delay := rc.baseDelay
	for i := 0; i < consumed; i++ {
		delay *= 2
	}
	return delay
}
