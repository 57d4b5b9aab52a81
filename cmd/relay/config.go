// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the relay.yaml file schema. Every key is optional; flags and
// environment variables override file values.
type Config struct {
	// BaseURL is the conversational service root (env: RELAY_BASE_URL).
	BaseURL string `yaml:"base_url"`

	// APIKey selects the OpenAI-compatible transport when set
	// (env: OPENAI_API_KEY). Empty uses the plain JSON transport.
	APIKey string `yaml:"api_key"`

	// Model is the default model name (env: RELAY_MODEL).
	Model string `yaml:"model"`

	// LogDir enables JSON file logging when set.
	LogDir string `yaml:"log_dir"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Offline   OfflineConfig   `yaml:"offline"`
}

// SchedulerConfig exposes the dispatch knobs worth tuning from a config
// file. Zero values take the scheduler's own defaults.
type SchedulerConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	MaxQueueSize  int           `yaml:"max_queue_size"`
	QueueTimeout  time.Duration `yaml:"queue_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	// BatchEndpoints lists endpoints the aggregator may coalesce.
	BatchEndpoints []string `yaml:"batch_endpoints"`
}

// OfflineConfig controls connectivity probing and offline fallback.
type OfflineConfig struct {
	// HealthPath is appended to BaseURL for connectivity probes.
	// Default: /health
	HealthPath string `yaml:"health_path"`

	// PollInterval is the probe cadence. Default: 15s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FallbackEnabled serves cached or placeholder answers while offline.
	FallbackEnabled bool `yaml:"fallback_enabled"`

	// QueueLimit caps buffered offline sends. Default: 100.
	QueueLimit int `yaml:"queue_limit"`
}

// loadConfig reads path, tolerating a missing file, then applies
// environment overrides and defaults.
func loadConfig(path string) (Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if v := os.Getenv("RELAY_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.APIKey == "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("RELAY_MODEL"); v != "" {
		cfg.Model = v
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Offline.HealthPath == "" {
		cfg.Offline.HealthPath = "/health"
	}
	if cfg.Offline.PollInterval <= 0 {
		cfg.Offline.PollInterval = 15 * time.Second
	}
	return cfg, nil
}
