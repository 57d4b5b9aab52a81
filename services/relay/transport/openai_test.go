// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relay/services/relay/scheduler"
)

// fakeCompletionServer answers /chat/completions echoing the last message.
func fakeCompletionServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		last := req.Messages[len(req.Messages)-1].Content

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"role": "assistant", "content": "echo:" + last},
				},
			},
		})
	}))
}

func newTestOpenAI(t *testing.T, baseURL string) *OpenAI {
	t.Helper()
	o, err := NewOpenAI(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
	}, testLogger())
	require.NoError(t, err)
	return o
}

func TestOpenAI_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{}, testLogger())
	assert.Error(t, err)
}

func TestOpenAI_SendChatPayload(t *testing.T) {
	server := fakeCompletionServer(t)
	defer server.Close()
	o := newTestOpenAI(t, server.URL)

	resp, err := o.Send(context.Background(), "chat", ChatPayload{
		Messages: []ChatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", resp)
}

func TestOpenAI_SendRejectsUnknownPayload(t *testing.T) {
	o := newTestOpenAI(t, "http://localhost:1")

	_, err := o.Send(context.Background(), "chat", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported payload type")
}

func TestOpenAI_BatchEnvelopeFansOutToKeyedItems(t *testing.T) {
	server := fakeCompletionServer(t)
	defer server.Close()
	o := newTestOpenAI(t, server.URL)

	resp, err := o.Send(context.Background(), "chat", scheduler.BatchEnvelope{
		Requests: []scheduler.BatchItem{
			{ID: "r1", Payload: ChatPayload{Messages: []ChatMessage{{Role: "user", Content: "one"}}}},
			{ID: "r2", Payload: ChatPayload{Messages: []ChatMessage{{Role: "user", Content: "two"}}}},
		},
	})
	require.NoError(t, err)

	obj := resp.(map[string]any)
	items := obj["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "r1", first["id"])
	assert.Equal(t, "echo:one", first["answer"])
}

func TestOpenAI_CompletionRequestDefaultsModel(t *testing.T) {
	o := newTestOpenAI(t, "http://localhost:1")

	req, err := o.completionRequest("chat", ChatPayload{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "test-model", req.Model)

	req, err = o.completionRequest("chat", &ChatPayload{
		Model:    "phi4",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "phi4", req.Model)
}

func TestChatPayload_BatchDiscriminant(t *testing.T) {
	assert.Equal(t, "phi4", ChatPayload{Model: "phi4"}.BatchDiscriminant())
	assert.Equal(t, "", ChatPayload{}.BatchDiscriminant())

	// The payload groups batches by model through the scheduler's interface.
	var _ scheduler.BatchDiscriminator = ChatPayload{}
}
