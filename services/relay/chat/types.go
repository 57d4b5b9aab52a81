// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chat is the thin client facade over the scheduler: conversation
// operations, offline buffering, and fallback synthesis.
package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/relay/services/relay/scheduler"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageContentBytes caps a single message body. Byte length, not
	// rune count, so oversized payloads are caught before serialization.
	MaxMessageContentBytes = 32 * 1024

	// MaxPageLimit caps one history/listing page.
	MaxPageLimit = 200
)

// =============================================================================
// Errors
// =============================================================================

// ErrOffline is returned when connectivity is down, the call was buffered,
// and no fallback response could be synthesized.
var ErrOffline = errors.New("chat: offline, request buffered")

// ErrUnknownSession is returned for operations on a session id this client
// never started.
var ErrUnknownSession = errors.New("chat: unknown session")

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate carries the custom validators for facade request types.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on a string field.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Facade Types
// =============================================================================

// Session is one conversation owned by this client.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest is one conversational turn.
//
// A non-nil Sink makes the send streaming: chunks go to the sink as they
// arrive, the cache and the batching aggregator are skipped, and canceling
// mid-stream is the caller's job (close whatever backs the sink).
type SendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Content   string `json:"content" validate:"required,maxbytes"`

	// Model overrides the client default for this turn.
	Model string `json:"model,omitempty"`

	// Priority orders dispatch; zero value is NORMAL.
	Priority scheduler.Priority `json:"-"`

	// Sink, when non-nil, streams the response incrementally.
	Sink scheduler.StreamSink `json:"-"`
}

// Validate checks the request against its constraints.
func (r *SendMessageRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("chat: invalid send request: %w", err)
	}
	return nil
}

// HistoryRequest fetches a page of a session's transcript.
type HistoryRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Offset    int    `json:"offset" validate:"gte=0"`
	Limit     int    `json:"limit" validate:"gte=0,lte=200"`
}

// Validate checks the request against its constraints.
func (r *HistoryRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("chat: invalid history request: %w", err)
	}
	return nil
}

// ListSessionsRequest fetches a page of the session index.
type ListSessionsRequest struct {
	Offset int `json:"offset" validate:"gte=0"`
	Limit  int `json:"limit" validate:"gte=0,lte=200"`
}

// Validate checks the request against its constraints.
func (r *ListSessionsRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("chat: invalid list request: %w", err)
	}
	return nil
}
