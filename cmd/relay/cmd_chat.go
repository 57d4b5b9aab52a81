// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relay/services/relay/chat"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	s, err := buildStack()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	session := s.client.StartSession(ctx, "interactive")
	fmt.Printf("Session %s. Type a message, or /stats, /history, /quit.\n", session.ID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if !runChatDirective(s, session, line) {
				break
			}
			continue
		}

		answer, err := s.client.SendMessage(ctx, chat.SendMessageRequest{
			SessionID: session.ID,
			Content:   line,
			Priority:  parsePriority(priority),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", answer)
	}
}

// runChatDirective handles slash commands; false means quit.
func runChatDirective(s *stack, session *chat.Session, line string) bool {
	switch line {
	case "/quit", "/exit":
		return false
	case "/stats":
		stats := s.scheduler.Stats()
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
		cacheStats := s.store.Stats()
		fmt.Printf("cache: %d entries, %d hits, %d misses, %d evictions\n",
			cacheStats.Entries, cacheStats.Hits, cacheStats.Misses, cacheStats.Evictions)
		if s.client.OfflineDepth() > 0 {
			fmt.Printf("offline buffer: %d pending\n", s.client.OfflineDepth())
		}
	case "/history":
		transcript, err := s.client.Transcript(session.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return true
		}
		for _, msg := range transcript {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", line)
	}
	return true
}
