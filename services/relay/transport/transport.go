// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transport implements the upstream exchange collaborators the
// scheduler dispatches through: a generic JSON-over-HTTP transport and an
// OpenAI-compatible adapter.
package transport

import (
	"fmt"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("relay.transport")

// Error is a transport-level failure carrying upstream context.
//
// The scheduler treats any transport error as retryable failure pressure;
// Error preserves the endpoint and HTTP status for logs and history.
type Error struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport: %s: %s", e.Endpoint, e.Message)
}

// ChatMessage is one turn of a conversation payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatPayload is the conversation request shape the chat facade submits.
type ChatPayload struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
}

// BatchDiscriminant groups chat payloads by model so only same-model
// requests coalesce in the batching aggregator.
func (p ChatPayload) BatchDiscriminant() string { return p.Model }
