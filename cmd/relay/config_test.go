// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relay/services/relay/scheduler"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "relay.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "/health", cfg.Offline.HealthPath)
	assert.Equal(t, 15*time.Second, cfg.Offline.PollInterval)
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://upstream:9000
model: phi4
scheduler:
  max_concurrent: 8
  batch_endpoints: [embed]
offline:
  fallback_enabled: true
  poll_interval: 5s
`), 0600))

	t.Setenv("RELAY_MODEL", "qwen3")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://upstream:9000", cfg.BaseURL)
	assert.Equal(t, "qwen3", cfg.Model, "environment wins over file")
	assert.Equal(t, 8, cfg.Scheduler.MaxConcurrent)
	assert.Equal(t, []string{"embed"}, cfg.Scheduler.BatchEndpoints)
	assert.True(t, cfg.Offline.FallbackEnabled)
	assert.Equal(t, 5*time.Second, cfg.Offline.PollInterval)
}

func TestLoadConfig_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [broken"), 0600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, scheduler.PriorityLow, parsePriority("low"))
	assert.Equal(t, scheduler.PriorityHigh, parsePriority("HIGH"))
	assert.Equal(t, scheduler.PriorityCritical, parsePriority("critical"))
	assert.Equal(t, scheduler.PriorityNormal, parsePriority("normal"))
	assert.Equal(t, scheduler.PriorityNormal, parsePriority("bogus"))
}
