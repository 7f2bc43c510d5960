package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/internal/ctxkeys"
	"github.com/BaSui01/companion/internal/tlsutil"
	"github.com/BaSui01/companion/llm"
	"github.com/BaSui01/companion/llm/tokenizer"
	"github.com/BaSui01/companion/types"
)

// Config configures the OpenAI-compatible service.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com".
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Model generates agent replies.
	Model string

	// RouterModel selects the agent. Defaults to Model.
	RouterModel string

	// ProfileModel rewrites the profile. Defaults to Model.
	ProfileModel string

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// Timeout bounds non-streaming calls. Defaults to 30s.
	Timeout time.Duration

	// StreamTimeout bounds a streamed reply. Defaults to 2m.
	StreamTimeout time.Duration

	// MaxHistoryTokens trims the oldest turns from prompts. Zero keeps the
	// whole history.
	MaxHistoryTokens int

	// Temperature is passed through when set.
	Temperature *float32
}

// Service implements llm.Service against a chat completions endpoint.
type Service struct {
	cfg     Config
	client  *http.Client
	counter tokenizer.Counter
	inst    instruments
	logger  *zap.Logger
}

var _ llm.Service = (*Service)(nil)

// New creates a Service.
func New(cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = 2 * time.Minute
	}
	if cfg.RouterModel == "" {
		cfg.RouterModel = cfg.Model
	}
	if cfg.ProfileModel == "" {
		cfg.ProfileModel = cfg.Model
	}
	return &Service{
		cfg: cfg,
		// Deadlines come from the per-call context so streams are not cut
		// by a client-wide timeout.
		client:  tlsutil.NewHTTPClient(0),
		counter: tokenizer.ForModel(cfg.Model),
		inst:    newInstruments(nil),
		logger:  logger.With(zap.String("component", "llm_openai")),
	}
}

// WithMeterProvider records call metrics on mp instead of the global provider.
func (s *Service) WithMeterProvider(mp metric.MeterProvider) *Service {
	if mp != nil {
		s.inst = newInstruments(mp)
	}
	return s
}

// WithHTTPClient swaps the underlying http.Client. Used by tests.
func (s *Service) WithHTTPClient(hc *http.Client) *Service {
	if hc != nil {
		s.client = hc
	}
	return s
}

// WithCounter swaps the token counter.
func (s *Service) WithCounter(c tokenizer.Counter) *Service {
	if c != nil {
		s.counter = c
	}
	return s
}

// =============================================================================
// llm.Service
// =============================================================================

// SelectAgentAndPrompts asks the router model for a JSON routing decision.
func (s *Service) SelectAgentAndPrompts(ctx context.Context, history []types.Message, routerInstruction string) (_ llm.Route, err error) {
	defer func(start time.Time) {
		s.inst.recordCall(ctx, llm.OpSelectAgent, s.cfg.RouterModel, start, err)
	}(time.Now())
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := chatRequest{
		Model:          s.cfg.RouterModel,
		Messages:       s.prompt(ctx, llm.OpSelectAgent, routerInstruction, history),
		Temperature:    s.cfg.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	content, err := s.complete(ctx, llm.OpSelectAgent, req)
	if err != nil {
		return llm.Route{}, err
	}

	route, err := ParseRoute(content)
	if err != nil {
		return llm.Route{}, types.ProcessingError(llm.OpSelectAgent, err)
	}
	s.logger.Debug("agent selected", zap.String("agent", route.Agent))
	return route, nil
}

// GenerateResponse streams the agent reply.
func (s *Service) GenerateResponse(ctx context.Context, req llm.GenerateRequest, onChunk llm.ChunkFunc) (_ string, err error) {
	defer func(start time.Time) {
		s.inst.recordCall(ctx, llm.OpGenerateResponse, s.cfg.Model, start, err)
	}(time.Now())
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StreamTimeout)
	defer cancel()

	body := chatRequest{
		Model:       s.cfg.Model,
		Messages:    s.prompt(ctx, llm.OpGenerateResponse, SystemPrompt(req), req.History),
		Temperature: s.cfg.Temperature,
		Stream:      true,
	}
	resp, err := s.send(ctx, llm.OpGenerateResponse, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	reply, err := ReadStream(ctx, resp.Body, onChunk)
	if err != nil {
		return "", types.ProcessingError(llm.OpGenerateResponse, err)
	}
	return reply, nil
}

// GenerateProfile rewrites the profile summary.
func (s *Service) GenerateProfile(ctx context.Context, current string, history []types.Message, instruction string) (_ string, err error) {
	defer func(start time.Time) {
		s.inst.recordCall(ctx, llm.OpGenerateProfile, s.cfg.ProfileModel, start, err)
	}(time.Now())
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	msgs := s.prompt(ctx, llm.OpGenerateProfile, instruction, history)
	msgs = append(msgs, chatMessage{Role: "user", Content: "Current profile:\n" + current})

	content, err := s.complete(ctx, llm.OpGenerateProfile, chatRequest{
		Model:       s.cfg.ProfileModel,
		Messages:    msgs,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// =============================================================================
// Prompt assembly
// =============================================================================

// SystemPrompt renders the agent instruction followed by the non-empty
// profile, examples and knowledge sections.
func SystemPrompt(req llm.GenerateRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Instruction))
	section := func(title, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("# ")
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(text)
	}
	section("User profile", req.Profile)
	section("Examples", req.Examples)
	section("Knowledge", req.Knowledge)
	return b.String()
}

// RenderHistory maps conversation turns onto chat roles. User and activity
// turns speak as the user; agent and scripted turns as the assistant.
func RenderHistory(history []types.Message) []tokenizer.Message {
	out := make([]tokenizer.Message, 0, len(history))
	for _, m := range history {
		switch m.Kind {
		case types.KindUser:
			out = append(out, tokenizer.Message{Role: "user", Content: m.Text})
		case types.KindActivity:
			out = append(out, tokenizer.Message{Role: "user", Content: "[activity] " + m.Text})
		default:
			out = append(out, tokenizer.Message{Role: "assistant", Content: m.Text})
		}
	}
	return out
}

func (s *Service) prompt(ctx context.Context, op, system string, history []types.Message) []chatMessage {
	all := RenderHistory(history)
	rendered := tokenizer.Trim(s.counter, all, s.cfg.MaxHistoryTokens)

	msgs := make([]chatMessage, 0, len(rendered)+1)
	counted := make([]tokenizer.Message, 0, len(rendered)+1)
	if system = strings.TrimSpace(system); system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
		counted = append(counted, tokenizer.Message{Role: "system", Content: system})
	}
	for _, m := range rendered {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	counted = append(counted, rendered...)
	s.inst.recordPrompt(ctx, op, tokenizer.CountMessages(s.counter, counted), len(all)-len(rendered))
	return msgs
}

// ParseRoute decodes the router's JSON answer, tolerating a fenced code
// block around it.
func ParseRoute(content string) (llm.Route, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var route llm.Route
	if err := json.Unmarshal([]byte(content), &route); err != nil {
		return llm.Route{}, fmt.Errorf("decode route: %w", err)
	}
	route.Agent = strings.TrimSpace(route.Agent)
	if route.Agent == "" {
		return llm.Route{}, errors.New("route names no agent")
	}
	return route, nil
}

// =============================================================================
// Transport
// =============================================================================

func (s *Service) complete(ctx context.Context, op string, body chatRequest) (string, error) {
	resp, err := s.send(ctx, op, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", types.ProcessingError(op, fmt.Errorf("decode response: %w", err))
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message == nil {
		return "", types.ProcessingError(op, errors.New("response has no choices"))
	}
	return cr.Choices[0].Message.Content, nil
}

// send posts body and returns the response when its status is 2xx.
func (s *Service) send(ctx context.Context, op string, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.ProcessingError(op, fmt.Errorf("marshal request: %w", err))
	}
	url := strings.TrimRight(s.cfg.BaseURL, "/") + s.cfg.EndpointPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.ConnectionError(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if turnID, ok := ctxkeys.TurnID(ctx); ok {
		req.Header.Set("X-Turn-ID", turnID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("model request failed", zap.String("op", op), zap.Error(err))
		return nil, types.ConnectionError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, types.ProtocolError(op, resp.StatusCode, readErrorMessage(resp.Body, resp.Status))
	}
	return resp, nil
}

func readErrorMessage(body io.Reader, fallback string) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return fallback
	}
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Error.Message != "" {
		if eb.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", eb.Error.Message, eb.Error.Type)
		}
		return eb.Error.Message
	}
	return strings.TrimSpace(string(data))
}
