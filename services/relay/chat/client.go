// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/relay/pkg/clock"
	"github.com/AleutianAI/relay/pkg/logging"
	"github.com/AleutianAI/relay/services/relay/scheduler"
	"github.com/AleutianAI/relay/services/relay/transport"
)

var tracer = otel.Tracer("relay.chat")

// Endpoints the facade submits to.
const (
	EndpointChat         = "chat/completions"
	EndpointSessionStart = "sessions/start"
	EndpointHistory      = "sessions/history"
	EndpointSessions     = "sessions/list"
)

// tagSessions marks cache entries invalidated when the session index
// changes.
const tagSessions = "sessions"

// offlinePlaceholder is the synthesized best-effort response when offline
// with no cached equivalent.
const offlinePlaceholder = "The assistant is unreachable right now. " +
	"Your message is queued and will be delivered when the connection returns."

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// Submitter is the scheduler surface the facade consumes.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, payload any,
		opts scheduler.SubmitOptions) (any, error)
	SubmitAsync(ctx context.Context, endpoint string, payload any,
		opts scheduler.SubmitOptions) *scheduler.Future
}

// Cache is the cache surface the facade consumes: fallback lookups and
// tag-based bulk invalidation.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	DeleteByTag(ctx context.Context, tag string) int
}

// =============================================================================
// Client
// =============================================================================

// Config configures the client facade.
type Config struct {
	// Model is the default model for sends that do not name one.
	Model string

	// ResponseTTL is the cache lifetime for chat responses.
	// Default: 5 minutes
	ResponseTTL time.Duration

	// HistoryTTL is the cache lifetime for history and listing pages.
	// Default: 1 minute
	HistoryTTL time.Duration

	// FallbackEnabled returns a cached equivalent or a synthesized
	// placeholder when offline, instead of ErrOffline.
	FallbackEnabled bool

	// OfflineLimit caps the offline buffer.
	// Default: 100
	OfflineLimit int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ResponseTTL:  5 * time.Minute,
		HistoryTTL:   time.Minute,
		OfflineLimit: 100,
	}
}

// HistoryPage is one page of a session transcript.
type HistoryPage struct {
	SessionID string                  `json:"session_id"`
	Messages  []transport.ChatMessage `json:"messages"`
	Offset    int                     `json:"offset"`
	Limit     int                     `json:"limit"`
	Total     int                     `json:"total"`
}

// sessionState is the locally owned view of one conversation.
type sessionState struct {
	session  Session
	messages []transport.ChatMessage
}

// Client exposes conversation operations, each mapping to exactly one
// scheduler submission with an endpoint-specific cache key.
//
// # Description
//
// The client owns the conversational context: it keeps each session's
// transcript locally and ships the whole conversation on every send. While
// the connectivity observer reports offline, high-level calls are buffered
// and replayed in priority order when the link returns; if fallback is
// enabled the caller meanwhile gets a cached equivalent or a synthesized
// placeholder.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	config    Config
	scheduler Submitter
	cache     Cache
	observer  ConnectivityObserver
	logger    *logging.Logger
	clock     clock.Clock

	offline     *offlineQueue
	unsubscribe func()

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewClient creates a facade over the given scheduler.
//
// # Inputs
//
//   - config: Facade configuration; zero values take defaults.
//   - submitter: Scheduler surface. Required.
//   - cache: For fallback lookups and invalidation. Nil disables both.
//   - observer: Connectivity source. Nil means always online.
//   - logger: Destination for structured logs. Nil uses the default logger.
func NewClient(config Config, submitter Submitter, cache Cache,
	observer ConnectivityObserver, logger *logging.Logger) *Client {
	return NewClientWithClock(config, submitter, cache, observer, logger, clock.Real())
}

// NewClientWithClock is NewClient with an injected time source.
func NewClientWithClock(config Config, submitter Submitter, cache Cache,
	observer ConnectivityObserver, logger *logging.Logger, clk clock.Clock) *Client {
	if config.ResponseTTL <= 0 {
		config.ResponseTTL = 5 * time.Minute
	}
	if config.HistoryTTL <= 0 {
		config.HistoryTTL = time.Minute
	}
	if config.OfflineLimit <= 0 {
		config.OfflineLimit = 100
	}
	if logger == nil {
		logger = logging.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}

	c := &Client{
		config:    config,
		scheduler: submitter,
		cache:     cache,
		observer:  observer,
		logger:    logger,
		clock:     clk,
		offline:   newOfflineQueue(config.OfflineLimit),
		sessions:  make(map[string]*sessionState),
	}
	if observer != nil {
		c.unsubscribe = observer.Subscribe(func(online bool) {
			if online {
				go c.replayOffline()
			}
		})
	}
	return c
}

// Close detaches the client from its connectivity observer. Buffered
// offline calls are dropped.
func (c *Client) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// =============================================================================
// Session Lifecycle
// =============================================================================

// StartSession creates a conversation.
//
// # Description
//
// The session is created locally first so sends can begin immediately; the
// upstream announcement rides a separate low-stakes submission (buffered
// when offline). Listing caches are invalidated.
func (c *Client) StartSession(ctx context.Context, title string) *Session {
	session := Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.sessions[session.ID] = &sessionState{session: session}
	c.mu.Unlock()

	if c.cache != nil {
		c.cache.DeleteByTag(ctx, tagSessions)
	}

	announce := func(ctx context.Context) {
		c.scheduler.SubmitAsync(ctx, EndpointSessionStart, map[string]any{
			"session_id": session.ID,
			"title":      title,
		}, scheduler.SubmitOptions{Priority: scheduler.PriorityLow, BypassCache: true})
	}
	if c.online() {
		announce(ctx)
	} else {
		c.bufferOffline(scheduler.PriorityLow, announce)
	}

	c.logger.Info("session started", "session_id", session.ID)
	return &session
}

// InvalidateSession drops every cached entry for the session. Returns the
// number of entries removed.
func (c *Client) InvalidateSession(ctx context.Context, sessionID string) int {
	if c.cache == nil {
		return 0
	}
	removed := c.cache.DeleteByTag(ctx, sessionTag(sessionID))
	c.logger.Debug("session cache invalidated", "session_id", sessionID, "removed", removed)
	return removed
}

// Transcript returns the locally held transcript for a session.
func (c *Client) Transcript(sessionID string) ([]transport.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.sessions[sessionID]
	if !ok {
		return nil, ErrUnknownSession
	}
	out := make([]transport.ChatMessage, len(state.messages))
	copy(out, state.messages)
	return out, nil
}

// =============================================================================
// Messaging
// =============================================================================

// SendMessage sends one conversational turn and returns the assistant
// response text.
//
// # Description
//
// Online, the full transcript plus the new turn goes through one scheduler
// submission; the response is appended to the local transcript and cached
// under a content fingerprint. Offline, the turn is buffered for replay
// and the caller gets the cached equivalent, a synthesized placeholder, or
// ErrOffline depending on the fallback policy.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "chat.SendMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("relay.session_id", req.SessionID),
		attribute.Bool("relay.streaming", req.Sink != nil),
	)

	if err := req.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	state, ok := c.sessions[req.SessionID]
	c.mu.Unlock()
	if !ok {
		return "", ErrUnknownSession
	}

	if !c.online() {
		return c.sendOffline(ctx, req)
	}
	return c.deliver(ctx, state, req)
}

// deliver runs the online path: one scheduler submission.
func (c *Client) deliver(ctx context.Context, state *sessionState,
	req SendMessageRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	c.mu.Lock()
	messages := make([]transport.ChatMessage, len(state.messages), len(state.messages)+1)
	copy(messages, state.messages)
	c.mu.Unlock()
	userTurn := transport.ChatMessage{Role: "user", Content: req.Content}
	messages = append(messages, userTurn)

	opts := scheduler.SubmitOptions{
		Priority: req.Priority,
		Sink:     req.Sink,
	}
	if req.Sink == nil {
		opts.CacheKey = messageCacheKey(req.SessionID, model, req.Content)
		opts.CacheTTL = c.config.ResponseTTL
		opts.CacheTags = []string{sessionTag(req.SessionID), "chat"}
	}

	payload := transport.ChatPayload{Model: model, Messages: messages}
	value, err := c.scheduler.Submit(ctx, EndpointChat, payload, opts)
	if err != nil {
		return "", err
	}

	answer := responseText(value)
	c.mu.Lock()
	state.messages = append(state.messages, userTurn,
		transport.ChatMessage{Role: "assistant", Content: answer})
	c.mu.Unlock()
	return answer, nil
}

// sendOffline buffers the turn and synthesizes a best-effort response.
func (c *Client) sendOffline(ctx context.Context, req SendMessageRequest) (string, error) {
	// Streaming sends always surface the raw failure: the sink belongs to
	// the current caller and cannot be replayed later, so the turn is not
	// buffered either.
	if req.Sink != nil {
		return "", ErrOffline
	}

	buffered := c.bufferOffline(req.Priority, func(ctx context.Context) {
		c.mu.Lock()
		state, ok := c.sessions[req.SessionID]
		c.mu.Unlock()
		if !ok {
			return
		}
		if _, err := c.deliver(ctx, state, req); err != nil {
			c.logger.Warn("offline replay failed",
				"session_id", req.SessionID,
				"error", err.Error(),
			)
		}
	})
	if !buffered {
		c.logger.Warn("offline buffer full, dropping message", "session_id", req.SessionID)
	}

	if !c.config.FallbackEnabled {
		return "", ErrOffline
	}

	// A previously cached response for an equivalent request serves as the
	// best-effort answer.
	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	if c.cache != nil {
		if value, ok := c.cache.Get(ctx, messageCacheKey(req.SessionID, model, req.Content)); ok {
			return responseText(value), nil
		}
	}
	return offlinePlaceholder, nil
}

// =============================================================================
// History and Listing
// =============================================================================

// GetHistory fetches one page of a session transcript through the
// scheduler, cached per page. While offline the fetch is buffered for
// replay and a cached or locally held page is served instead (ErrOffline
// when fallback is disabled).
func (c *Client) GetHistory(ctx context.Context, req HistoryRequest) (*HistoryPage, error) {
	ctx, span := tracer.Start(ctx, "chat.GetHistory")
	defer span.End()
	span.SetAttributes(attribute.String("relay.session_id", req.SessionID))

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Limit == 0 {
		req.Limit = 50
	}

	if !c.online() {
		return c.historyOffline(ctx, req)
	}

	value, err := c.scheduler.Submit(ctx, EndpointHistory, map[string]any{
		"session_id": req.SessionID,
		"offset":     req.Offset,
		"limit":      req.Limit,
	}, scheduler.SubmitOptions{
		CacheKey:  historyCacheKey(req.SessionID, req.Offset, req.Limit),
		CacheTTL:  c.config.HistoryTTL,
		CacheTags: []string{sessionTag(req.SessionID)},
	})
	if err != nil {
		return nil, err
	}

	page := parseHistory(req, value)
	if page != nil {
		return page, nil
	}

	// Upstream answered in a shape we do not recognize; the local
	// transcript still serves the page.
	messages, localErr := c.Transcript(req.SessionID)
	if localErr != nil {
		return nil, fmt.Errorf("chat: unrecognized history response shape")
	}
	return paginateLocal(req, messages), nil
}

// ListSessions fetches one page of the session index through the
// scheduler, falling back to locally known sessions. While offline the
// fetch is buffered for replay and a cached or local index is served
// instead (ErrOffline when fallback is disabled).
func (c *Client) ListSessions(ctx context.Context, req ListSessionsRequest) ([]Session, error) {
	ctx, span := tracer.Start(ctx, "chat.ListSessions")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Limit == 0 {
		req.Limit = 50
	}

	if !c.online() {
		return c.sessionsOffline(ctx, req)
	}

	value, err := c.scheduler.Submit(ctx, EndpointSessions, map[string]any{
		"offset": req.Offset,
		"limit":  req.Limit,
	}, scheduler.SubmitOptions{
		CacheKey:  sessionsCacheKey(req.Offset, req.Limit),
		CacheTTL:  c.config.HistoryTTL,
		CacheTags: []string{tagSessions},
	})
	if err != nil {
		return nil, err
	}

	if sessions, ok := parseSessions(value); ok {
		return sessions, nil
	}
	return c.localSessions(req), nil
}

// historyOffline buffers the fetch for replay and serves a best-effort
// page: the cached page if present, else the local transcript.
func (c *Client) historyOffline(ctx context.Context, req HistoryRequest) (*HistoryPage, error) {
	c.bufferOffline(scheduler.PriorityLow, func(ctx context.Context) {
		if _, err := c.GetHistory(ctx, req); err != nil {
			c.logger.Warn("offline replay failed",
				"endpoint", EndpointHistory,
				"error", err.Error(),
			)
		}
	})

	if !c.config.FallbackEnabled {
		return nil, ErrOffline
	}
	if c.cache != nil {
		if value, ok := c.cache.Get(ctx, historyCacheKey(req.SessionID, req.Offset, req.Limit)); ok {
			if page := parseHistory(req, value); page != nil {
				return page, nil
			}
		}
	}
	messages, err := c.Transcript(req.SessionID)
	if err != nil {
		return nil, err
	}
	return paginateLocal(req, messages), nil
}

// sessionsOffline buffers the fetch for replay and serves a best-effort
// index: the cached page if present, else the locally known sessions.
func (c *Client) sessionsOffline(ctx context.Context, req ListSessionsRequest) ([]Session, error) {
	c.bufferOffline(scheduler.PriorityLow, func(ctx context.Context) {
		if _, err := c.ListSessions(ctx, req); err != nil {
			c.logger.Warn("offline replay failed",
				"endpoint", EndpointSessions,
				"error", err.Error(),
			)
		}
	})

	if !c.config.FallbackEnabled {
		return nil, ErrOffline
	}
	if c.cache != nil {
		if value, ok := c.cache.Get(ctx, sessionsCacheKey(req.Offset, req.Limit)); ok {
			if sessions, ok := parseSessions(value); ok {
				return sessions, nil
			}
		}
	}
	return c.localSessions(req), nil
}

// localSessions pages the locally known sessions, newest first.
func (c *Client) localSessions(req ListSessionsRequest) []Session {
	c.mu.Lock()
	sessions := make([]Session, 0, len(c.sessions))
	for _, state := range c.sessions {
		sessions = append(sessions, state.session)
	}
	c.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if req.Offset >= len(sessions) {
		return nil
	}
	end := req.Offset + req.Limit
	if end > len(sessions) {
		end = len(sessions)
	}
	return sessions[req.Offset:end]
}

// =============================================================================
// Offline Replay
// =============================================================================

// OfflineDepth reports the number of buffered calls awaiting replay.
func (c *Client) OfflineDepth() int { return c.offline.len() }

func (c *Client) online() bool {
	return c.observer == nil || c.observer.IsOnline()
}

func (c *Client) bufferOffline(priority scheduler.Priority, replay func(ctx context.Context)) bool {
	return c.offline.push(priority, replay)
}

// replayOffline drains the buffer priority-first, each entry resolving
// independently through the normal facade path.
func (c *Client) replayOffline() {
	entries := c.offline.drain()
	if len(entries) == 0 {
		return
	}
	c.logger.Info("replaying buffered offline calls", "count", len(entries))
	for _, entry := range entries {
		entry.replay(context.Background())
	}
}

// =============================================================================
// Cache Keys and Response Shapes
// =============================================================================

func sessionTag(sessionID string) string { return "session:" + sessionID }

// messageCacheKey fingerprints an equivalent request: same session, model,
// and content hash.
func messageCacheKey(sessionID, model, content string) string {
	h := fnv.New64a()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return fmt.Sprintf("chat:%s:%x", sessionID, h.Sum64())
}

func historyCacheKey(sessionID string, offset, limit int) string {
	return fmt.Sprintf("history:%s:%d:%d", sessionID, offset, limit)
}

func sessionsCacheKey(offset, limit int) string {
	return fmt.Sprintf("sessions:%d:%d", offset, limit)
}

// responseText extracts the assistant text from a transport response.
func responseText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"answer", "content", "response", "text"} {
			if s, ok := v[key].(string); ok {
				return s
			}
		}
	}
	return fmt.Sprintf("%v", value)
}

// parseHistory decodes the upstream history page shape, nil when the shape
// does not match.
func parseHistory(req HistoryRequest, value any) *HistoryPage {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := obj["messages"].([]any)
	if !ok {
		return nil
	}

	page := &HistoryPage{
		SessionID: req.SessionID,
		Offset:    req.Offset,
		Limit:     req.Limit,
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		page.Messages = append(page.Messages, transport.ChatMessage{Role: role, Content: content})
	}
	if total, ok := obj["total"].(float64); ok {
		page.Total = int(total)
	} else {
		page.Total = len(page.Messages)
	}
	return page
}

// paginateLocal slices the local transcript into the requested page.
func paginateLocal(req HistoryRequest, messages []transport.ChatMessage) *HistoryPage {
	page := &HistoryPage{
		SessionID: req.SessionID,
		Offset:    req.Offset,
		Limit:     req.Limit,
		Total:     len(messages),
	}
	if req.Offset >= len(messages) {
		return page
	}
	end := req.Offset + req.Limit
	if end > len(messages) {
		end = len(messages)
	}
	page.Messages = messages[req.Offset:end]
	return page
}

// parseSessions decodes the upstream session index shape.
func parseSessions(value any) ([]Session, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := obj["sessions"].([]any)
	if !ok {
		return nil, false
	}

	sessions := make([]Session, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		session := Session{ID: id}
		session.Title, _ = m["title"].(string)
		if created, ok := m["created_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, created); err == nil {
				session.CreatedAt = ts
			}
		}
		sessions = append(sessions, session)
	}
	return sessions, true
}
