// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relay/services/relay/chat"
)

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")

	s, err := buildStack()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer s.close()

	session := s.client.StartSession(cmd.Context(), "ask")

	req := chat.SendMessageRequest{
		SessionID: session.ID,
		Content:   question,
		Priority:  parsePriority(priority),
	}
	if streamMode {
		req.Sink = func(chunk []byte) error {
			_, err := os.Stdout.Write(chunk)
			return err
		}
	}

	answer, err := s.client.SendMessage(context.Background(), req)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if streamMode {
		fmt.Println()
	} else {
		fmt.Println(answer)
	}
}
