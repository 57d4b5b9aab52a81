// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func runHealthCommand(cmd *cobra.Command, args []string) {
	url := strings.TrimRight(config.BaseURL, "/") + config.Offline.HealthPath

	client := &http.Client{Timeout: 5 * time.Second}
	start := time.Now()
	resp, err := client.Get(url)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		fmt.Printf("UNREACHABLE  %s  (%v)\n", url, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		fmt.Printf("UNHEALTHY    %s  %d  %s\n", url, resp.StatusCode, elapsed)
		os.Exit(1)
	}
	fmt.Printf("OK           %s  %d  %s\n", url, resp.StatusCode, elapsed)
}
