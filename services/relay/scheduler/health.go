// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/pkg/logging"
)

// HealthMonitorConfig configures the periodic health sampler.
type HealthMonitorConfig struct {
	// Interval between samples.
	// Default: 10 seconds
	Interval time.Duration

	// FailureRateThreshold above which the service is unhealthy (0..1).
	// Default: 0.5
	FailureRateThreshold float64

	// LatencyThreshold is the average response time above which the service
	// is unhealthy.
	// Default: 10 seconds
	LatencyThreshold time.Duration

	// MinSamples is the minimum terminal request count before the monitor
	// trusts the rates. Below it the service is considered healthy.
	// Default: 5
	MinSamples int64
}

// DefaultHealthMonitorConfig returns sensible defaults.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		Interval:             10 * time.Second,
		FailureRateThreshold: 0.5,
		LatencyThreshold:     10 * time.Second,
		MinSamples:           5,
	}
}

// HealthMonitor periodically samples scheduler stats and maintains a coarse
// healthy/unhealthy flag.
//
// # Description
//
// This is a latency-aware signal, deliberately separate from the circuit
// breaker's pure failure-count signal: a service that answers everything
// slowly trips the monitor without ever tripping the breaker. The scheduler
// can gate admission on the flag when configured to.
//
// # Thread Safety
//
// IsHealthy and CheckNow are safe for concurrent use. Start and Stop must
// not be called concurrently with each other.
type HealthMonitor struct {
	config HealthMonitorConfig
	clock  clock.Clock
	logger *logging.Logger

	// sample produces the stats snapshot each tick evaluates.
	sample func() Stats

	healthy atomic.Bool
	ticker  clock.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewHealthMonitor creates a monitor that starts healthy.
//
// # Inputs
//
//   - config: Sampling thresholds; zero values take defaults.
//   - sample: Stats snapshot source, typically Scheduler.Stats.
//   - clk: Time source for the tick. Nil uses the real clock.
//   - logger: Destination for transition logs. Nil uses the default logger.
func NewHealthMonitor(config HealthMonitorConfig, sample func() Stats,
	clk clock.Clock, logger *logging.Logger) *HealthMonitor {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.FailureRateThreshold <= 0 {
		config.FailureRateThreshold = 0.5
	}
	if config.LatencyThreshold <= 0 {
		config.LatencyThreshold = 10 * time.Second
	}
	if config.MinSamples <= 0 {
		config.MinSamples = 5
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = logging.Default()
	}
	hm := &HealthMonitor{
		config: config,
		clock:  clk,
		logger: logger,
		sample: sample,
	}
	hm.healthy.Store(true)
	return hm
}

// Start begins periodic sampling. Calling Start twice is a no-op.
func (hm *HealthMonitor) Start() {
	if hm.started {
		return
	}
	hm.started = true
	hm.done = make(chan struct{})
	hm.ticker = hm.clock.NewTicker(hm.config.Interval)
	hm.wg.Add(1)
	go hm.run()
}

// Stop ends sampling and waits for the tick goroutine to exit. The flag
// keeps its last value.
func (hm *HealthMonitor) Stop() {
	if !hm.started {
		return
	}
	hm.started = false
	hm.ticker.Stop()
	close(hm.done)
	hm.wg.Wait()
}

func (hm *HealthMonitor) run() {
	defer hm.wg.Done()
	for {
		select {
		case <-hm.ticker.C():
			hm.CheckNow()
		case <-hm.done:
			return
		}
	}
}

// IsHealthy reports the current flag.
func (hm *HealthMonitor) IsHealthy() bool {
	return hm.healthy.Load()
}

// CheckNow evaluates one sample immediately, outside the tick cadence.
//
// # Outputs
//
//   - bool: The flag after evaluation.
func (hm *HealthMonitor) CheckNow() bool {
	stats := hm.sample()

	healthy := true
	if stats.RequestCount >= hm.config.MinSamples {
		if stats.FailureRate > hm.config.FailureRateThreshold {
			healthy = false
		}
		if stats.AverageResponseTime > hm.config.LatencyThreshold {
			healthy = false
		}
	}

	was := hm.healthy.Swap(healthy)
	if was != healthy {
		if healthy {
			hm.logger.Info("service healthy again",
				"failure_rate", stats.FailureRate,
				"avg_response_time", stats.AverageResponseTime,
			)
		} else {
			hm.logger.Warn("service unhealthy",
				"failure_rate", stats.FailureRate,
				"avg_response_time", stats.AverageResponseTime,
				"samples", stats.RequestCount,
			)
		}
	}
	return healthy
}
