package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/companion/internal/ctxkeys"
	"github.com/BaSui01/companion/internal/tlsutil"
	"github.com/BaSui01/companion/types"
)

// HTTPConfig configures HTTPClient.
type HTTPConfig struct {
	// BaseURL is the backend root, e.g. "https://companion.example.com".
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds each request. Defaults to 15s if zero.
	Timeout time.Duration

	// RateLimit is the sustained request rate per second. Zero disables
	// client-side limiting.
	RateLimit float64

	// Burst is the limiter bucket size. Defaults to 1.
	Burst int
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	cfg     HTTPConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a backend client.
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &HTTPClient{
		cfg:    cfg,
		http:   tlsutil.NewHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "api_client")),
		now:    time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// WithHTTPClient swaps the underlying http.Client. Used by tests.
func (c *HTTPClient) WithHTTPClient(hc *http.Client) *HTTPClient {
	if hc != nil {
		c.http = hc
	}
	return c
}

// =============================================================================
// Conversations
// =============================================================================

// GetOrCreateConversation returns the user's active conversation, creating
// one when none exists or forceNew is set.
func (c *HTTPClient) GetOrCreateConversation(ctx context.Context, userID string, forceNew bool) (types.Conversation, error) {
	var conv types.Conversation
	err := c.do(ctx, OpGetOrCreateConversation, http.MethodPost, "/v1/conversations",
		ConversationRequest{UserID: userID, ForceNew: forceNew}, &conv)
	return conv, err
}

// GetConversation fetches a conversation by id.
func (c *HTTPClient) GetConversation(ctx context.Context, conversationID string) (types.Conversation, error) {
	var conv types.Conversation
	err := c.do(ctx, OpGetConversation, http.MethodGet,
		"/v1/conversations/"+url.PathEscape(conversationID), nil, &conv)
	return conv, err
}

// ListConversations lists every conversation of a user.
func (c *HTTPClient) ListConversations(ctx context.Context, userID string) ([]types.Conversation, error) {
	var convs []types.Conversation
	err := c.do(ctx, OpListConversations, http.MethodGet,
		"/v1/conversations?user_id="+url.QueryEscape(userID), nil, &convs)
	return convs, err
}

// =============================================================================
// Profiles
// =============================================================================

// GetOrCreateProfile returns the profile of a conversation.
func (c *HTTPClient) GetOrCreateProfile(ctx context.Context, conversationID string) (types.Profile, error) {
	var p types.Profile
	err := c.do(ctx, OpGetOrCreateProfile, http.MethodPost, "/v1/profiles",
		ProfileRequest{ConversationID: conversationID}, &p)
	return p, err
}

// GetProfile fetches a profile by id.
func (c *HTTPClient) GetProfile(ctx context.Context, profileID string) (types.Profile, error) {
	var p types.Profile
	err := c.do(ctx, OpGetProfile, http.MethodGet, "/v1/profiles/"+url.PathEscape(profileID), nil, &p)
	return p, err
}

// UpdateProfile replaces a profile summary.
func (c *HTTPClient) UpdateProfile(ctx context.Context, profileID, summary string) (types.Profile, error) {
	var p types.Profile
	err := c.do(ctx, OpUpdateProfile, http.MethodPut, "/v1/profiles/"+url.PathEscape(profileID),
		ProfileUpdateRequest{Summary: summary}, &p)
	return p, err
}

// =============================================================================
// Messages
// =============================================================================

// ListMessages returns the stored history of a conversation.
func (c *HTTPClient) ListMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
	var stored []MessagePayload
	if err := c.do(ctx, OpListMessages, http.MethodGet,
		"/v1/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &stored); err != nil {
		return nil, err
	}
	out := make([]types.Message, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.Decode())
	}
	return out, nil
}

// AppendMessage persists one message.
func (c *HTTPClient) AppendMessage(ctx context.Context, conversationID string, msg types.Message) error {
	return c.do(ctx, OpAppendMessage, http.MethodPost,
		"/v1/conversations/"+url.PathEscape(conversationID)+"/messages", msg.Encode(), nil)
}

// =============================================================================
// Reference data
// =============================================================================

// ListPredefinedMessages returns the full predefined catalog.
func (c *HTTPClient) ListPredefinedMessages(ctx context.Context) ([]types.PredefinedEntry, error) {
	var entries []types.PredefinedEntry
	err := c.do(ctx, OpListPredefinedMessages, http.MethodGet, "/v1/predefined-messages", nil, &entries)
	return entries, err
}

// ListInstructions returns every instruction.
func (c *HTTPClient) ListInstructions(ctx context.Context) ([]types.InstructionEntry, error) {
	var entries []types.InstructionEntry
	err := c.do(ctx, OpListInstructions, http.MethodGet, "/v1/instructions", nil, &entries)
	return entries, err
}

// Ping checks that the backend answers.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, "Ping", http.MethodGet, "/v1/health", nil, nil)
}

// =============================================================================
// Transport
// =============================================================================

func (c *HTTPClient) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// do sends one request and decodes the envelope's data into out. Every
// failure is classified as a connection, protocol or processing error.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) error {
	start := c.now()
	requestID := uuid.NewString()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return types.ConnectionError(op, fmt.Errorf("rate limiter: %w", err))
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return types.ProcessingError(op, fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return types.ConnectionError(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if turnID, ok := ctxkeys.TurnID(ctx); ok {
		req.Header.Set("X-Turn-ID", turnID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return types.ConnectionError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.ConnectionError(op, fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("backend request",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", c.now().Sub(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.ProtocolError(op, resp.StatusCode, errorMessage(raw, resp.Status))
	}

	var env Response
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.ProcessingError(op, fmt.Errorf("decode envelope: %w", err))
	}
	if !env.Success {
		msg := "backend reported failure"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return types.ProcessingError(op, errors.New(msg))
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return types.ProcessingError(op, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(raw []byte, fallback string) string {
	var env Response
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		if len(text) > 256 {
			text = text[:256]
		}
		return text
	}
	return fallback
}
