// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/relay/pkg/logging"
	"github.com/AleutianAI/relay/services/relay/scheduler"
)

// OpenAIConfig configures the OpenAI-compatible adapter.
type OpenAIConfig struct {
	// APIKey authenticates against the upstream. Required.
	APIKey string

	// BaseURL overrides the upstream root, for OpenAI-compatible local
	// servers. Empty uses the official endpoint.
	BaseURL string

	// Model is the default when a payload does not name one.
	// Default: gpt-4o-mini
	Model string
}

// OpenAI adapts an OpenAI-compatible chat API to the scheduler's Transport.
//
// # Description
//
// Payloads must be ChatPayload values. The chat API has no combined call,
// so a BatchEnvelope fans out sequentially and comes back as a keyed
// "items" list, which the aggregator demultiplexes by member id.
//
// # Thread Safety
//
// Safe for concurrent use.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

// NewOpenAI creates the adapter.
func NewOpenAI(config OpenAIConfig, logger *logging.Logger) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, errors.New("transport: openai api key not set")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = logging.Default()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
		logger: logger,
	}, nil
}

// Send performs one chat completion, or fans out a batch envelope.
func (o *OpenAI) Send(ctx context.Context, endpoint string, payload any) (any, error) {
	ctx, span := tracer.Start(ctx, "transport.OpenAI.Send")
	defer span.End()
	span.SetAttributes(attribute.String("relay.endpoint", endpoint))

	if env, ok := payload.(scheduler.BatchEnvelope); ok {
		return o.sendBatch(ctx, endpoint, env)
	}

	req, err := o.completionRequest(endpoint, payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("openai call failed", "endpoint", endpoint, "error", err.Error())
		return nil, &Error{Endpoint: endpoint, Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Endpoint: endpoint, Message: "upstream returned no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

// SendStream streams one chat completion, piping deltas to sink.
func (o *OpenAI) SendStream(ctx context.Context, endpoint string, payload any,
	sink scheduler.StreamSink) (any, error) {
	ctx, span := tracer.Start(ctx, "transport.OpenAI.SendStream")
	defer span.End()
	span.SetAttributes(attribute.String("relay.endpoint", endpoint))

	req, err := o.completionRequest(endpoint, payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	req.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &Error{Endpoint: endpoint, Message: err.Error()}
	}
	defer stream.Close()

	var full []byte
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			return nil, &Error{Endpoint: endpoint, Message: err.Error()}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := []byte(chunk.Choices[0].Delta.Content)
		if len(delta) == 0 {
			continue
		}
		if err := sink(delta); err != nil {
			return nil, &Error{Endpoint: endpoint, Message: fmt.Sprintf("sink aborted stream: %v", err)}
		}
		full = append(full, delta...)
	}
	return string(full), nil
}

// sendBatch emulates a combined call by fanning out and answering as a
// keyed items list.
func (o *OpenAI) sendBatch(ctx context.Context, endpoint string,
	env scheduler.BatchEnvelope) (any, error) {
	items := make([]any, 0, len(env.Requests))
	for _, item := range env.Requests {
		req, err := o.completionRequest(endpoint, item.Payload)
		if err != nil {
			return nil, err
		}
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			// One member failing fails the combined call; the aggregator
			// re-submits members individually.
			return nil, &Error{Endpoint: endpoint, Message: err.Error()}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		items = append(items, map[string]any{
			"id":     item.ID,
			"answer": resp.Choices[0].Message.Content,
		})
	}
	return map[string]any{"items": items}, nil
}

// completionRequest converts a ChatPayload into the upstream request shape.
func (o *OpenAI) completionRequest(endpoint string, payload any) (openai.ChatCompletionRequest, error) {
	chat, ok := payload.(ChatPayload)
	if !ok {
		if ptr, isPtr := payload.(*ChatPayload); isPtr {
			chat = *ptr
		} else {
			return openai.ChatCompletionRequest{}, &Error{
				Endpoint: endpoint,
				Message:  fmt.Sprintf("unsupported payload type %T", payload),
			}
		}
	}

	model := chat.Model
	if model == "" {
		model = o.model
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(chat.Messages))
	for _, m := range chat.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: chat.Temperature,
	}, nil
}

// Compile-time interface checks.
var (
	_ scheduler.Transport          = (*OpenAI)(nil)
	_ scheduler.StreamingTransport = (*OpenAI)(nil)
)
