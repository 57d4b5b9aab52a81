// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command relay is a resilient CLI front end for a conversational AI
// service.
//
// Usage:
//
//	relay ask "why is the sky blue?"
//	relay ask --stream "summarize this file" < notes.txt
//	relay chat
//	relay health
//
// Configuration is read from relay.yaml in the working directory (or the
// path given with --config), with flags and environment variables taking
// precedence. See Config for the recognized keys.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
