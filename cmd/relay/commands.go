// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	baseURL    string
	modelName  string
	verbose    bool
	streamMode bool
	priority   string

	config Config

	rootCmd = &cobra.Command{
		Use:   "relay",
		Short: "A resilient client for a conversational AI service",
		Long: `Relay fronts a conversational AI service with a priority
scheduler, retries, a circuit breaker, response caching, and offline
buffering, so flaky upstreams stay usable from the terminal.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			config, err = loadConfig(configPath)
			if err != nil {
				log.Fatalf("Error loading configuration: %v", err)
			}
			if baseURL != "" {
				config.BaseURL = baseURL
			}
			if modelName != "" {
				config.Model = modelName
			}
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand, // Defined in cmd_ask.go
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Probe the upstream service and report reachability",
		Run:   runHealthCommand, // Defined in cmd_health.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "relay.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Conversational service root URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "Model name (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	askCmd.Flags().BoolVar(&streamMode, "stream", false, "Stream the answer as it is generated")
	askCmd.Flags().StringVar(&priority, "priority", "normal", "Request priority: low, normal, high, critical")

	chatCmd.Flags().StringVar(&priority, "priority", "normal", "Request priority: low, normal, high, critical")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(healthCmd)
}
