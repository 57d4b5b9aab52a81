// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/relay/pkg/logging"
	"github.com/AleutianAI/relay/services/relay/scheduler"
)

// HTTPConfig configures the JSON-over-HTTP transport.
type HTTPConfig struct {
	// BaseURL is the upstream root; endpoints are joined as paths under it.
	BaseURL string

	// Timeout bounds one exchange, streaming included.
	// Default: 2 minutes
	Timeout time.Duration

	// Headers are added to every request (auth tokens, custom routing).
	Headers map[string]string
}

// HTTP posts JSON payloads to {BaseURL}/{endpoint} and decodes JSON
// responses.
//
// # Description
//
// Non-2xx statuses become *Error values so the scheduler and its history
// see the upstream status. Streaming responses are consumed line by line,
// accepting both SSE ("data: ..." frames) and NDJSON bodies.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying http.Client handles pooling.
type HTTP struct {
	client *http.Client
	config HTTPConfig
	logger *logging.Logger
}

// NewHTTP creates the transport with a default client.
func NewHTTP(config HTTPConfig, logger *logging.Logger) *HTTP {
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	return NewHTTPWithClient(config, logger, &http.Client{Timeout: config.Timeout})
}

// NewHTTPWithClient is NewHTTP with an injected http.Client, for tests.
func NewHTTPWithClient(config HTTPConfig, logger *logging.Logger, client *http.Client) *HTTP {
	if logger == nil {
		logger = logging.Default()
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &HTTP{client: client, config: config, logger: logger}
}

// Send posts payload to endpoint and returns the decoded JSON response.
func (h *HTTP) Send(ctx context.Context, endpoint string, payload any) (any, error) {
	ctx, span := tracer.Start(ctx, "transport.HTTP.Send")
	defer span.End()
	span.SetAttributes(attribute.String("relay.endpoint", endpoint))

	resp, err := h.post(ctx, endpoint, payload, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, &Error{Endpoint: endpoint, Message: fmt.Sprintf("reading body: %v", err)}
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		// Plain-text upstreams are still a valid response.
		return string(body), nil
	}
	return decoded, nil
}

// SendStream posts payload and pipes each response line to sink as it
// arrives. The returned value is the concatenated chunk text.
func (h *HTTP) SendStream(ctx context.Context, endpoint string, payload any,
	sink scheduler.StreamSink) (any, error) {
	ctx, span := tracer.Start(ctx, "transport.HTTP.SendStream")
	defer span.End()
	span.SetAttributes(attribute.String("relay.endpoint", endpoint))

	resp, err := h.post(ctx, endpoint, payload, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var full bytes.Buffer
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		chunk := parseStreamLine(line)
		if chunk == nil {
			continue
		}
		if err := sink(chunk); err != nil {
			return nil, &Error{Endpoint: endpoint, Message: fmt.Sprintf("sink aborted stream: %v", err)}
		}
		full.Write(chunk)
	}
	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		return nil, &Error{Endpoint: endpoint, Message: fmt.Sprintf("reading stream: %v", err)}
	}
	return full.String(), nil
}

// post issues the request and maps non-2xx statuses to *Error.
func (h *HTTP) post(ctx context.Context, endpoint string, payload any,
	stream bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Message: fmt.Sprintf("marshaling payload: %v", err)}
	}

	url := h.config.BaseURL + "/" + strings.TrimPrefix(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range h.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("upstream call failed", "endpoint", endpoint, "error", err.Error())
		return nil, &Error{Endpoint: endpoint, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		h.logger.Warn("upstream returned error status",
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
		return nil, &Error{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

// parseStreamLine extracts the chunk from one stream line: SSE data frames
// are unwrapped, terminators and blanks dropped, anything else passed as-is.
func parseStreamLine(line []byte) []byte {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	if bytes.HasPrefix(trimmed, []byte("data:")) {
		trimmed = bytes.TrimSpace(trimmed[len("data:"):])
	}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[DONE]")) {
		return nil
	}
	return trimmed
}

// Compile-time interface checks.
var (
	_ scheduler.Transport          = (*HTTP)(nil)
	_ scheduler.StreamingTransport = (*HTTP)(nil)
)
