// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/relay/pkg/logging"
	"github.com/AleutianAI/relay/services/relay/cache"
	"github.com/AleutianAI/relay/services/relay/chat"
	"github.com/AleutianAI/relay/services/relay/scheduler"
	"github.com/AleutianAI/relay/services/relay/transport"
)

// stack wires the full client pipeline for one CLI invocation:
// transport → scheduler (+ cache) → chat facade, with a connectivity
// observer probing the upstream health endpoint.
type stack struct {
	logger    *logging.Logger
	store     *cache.Memory
	scheduler *scheduler.Scheduler
	observer  *chat.PollingObserver
	client    *chat.Client
}

func buildStack() (*stack, error) {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  config.LogDir,
		Service: "cli",
	})

	var upstream scheduler.Transport
	if config.APIKey != "" {
		t, err := transport.NewOpenAI(transport.OpenAIConfig{
			APIKey:  config.APIKey,
			BaseURL: config.BaseURL,
			Model:   config.Model,
		}, logger)
		if err != nil {
			logger.Close()
			return nil, fmt.Errorf("configure transport: %w", err)
		}
		upstream = t
	} else {
		upstream = transport.NewHTTP(transport.HTTPConfig{BaseURL: config.BaseURL}, logger)
	}

	store := cache.NewMemory(cache.DefaultConfig(), logger)

	schedConfig := scheduler.DefaultConfig()
	if config.Scheduler.MaxConcurrent > 0 {
		schedConfig.MaxConcurrentRequests = config.Scheduler.MaxConcurrent
	}
	if config.Scheduler.MaxQueueSize > 0 {
		schedConfig.MaxQueueSize = config.Scheduler.MaxQueueSize
	}
	if config.Scheduler.QueueTimeout != 0 {
		schedConfig.RequestTimeout = config.Scheduler.QueueTimeout
	}
	if config.Scheduler.MaxRetries != 0 {
		schedConfig.MaxRetries = config.Scheduler.MaxRetries
	}
	if config.Scheduler.CacheTTL > 0 {
		schedConfig.CacheTTL = config.Scheduler.CacheTTL
	}
	schedConfig.BatchableEndpoints = config.Scheduler.BatchEndpoints
	sched := scheduler.New(schedConfig, upstream, store, logger)

	observer := chat.NewPollingObserver(
		strings.TrimRight(config.BaseURL, "/")+config.Offline.HealthPath,
		config.Offline.PollInterval, logger, nil)
	observer.Start()

	client := chat.NewClient(chat.Config{
		Model:           config.Model,
		FallbackEnabled: config.Offline.FallbackEnabled,
		OfflineLimit:    config.Offline.QueueLimit,
	}, sched, store, observer, logger)

	return &stack{
		logger:    logger,
		store:     store,
		scheduler: sched,
		observer:  observer,
		client:    client,
	}, nil
}

// close tears the pipeline down in reverse dependency order.
func (s *stack) close() {
	s.client.Close()
	s.observer.Stop()
	s.scheduler.Close()
	s.store.Close()
	s.logger.Close()
}

// parsePriority maps a flag value to a scheduler priority, defaulting to
// NORMAL for unrecognized names.
func parsePriority(name string) scheduler.Priority {
	switch strings.ToLower(name) {
	case "low":
		return scheduler.PriorityLow
	case "high":
		return scheduler.PriorityHigh
	case "critical":
		return scheduler.PriorityCritical
	default:
		return scheduler.PriorityNormal
	}
}
