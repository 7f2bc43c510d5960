package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/companion/internal/tlsutil"
	"github.com/BaSui01/companion/types"
	"github.com/BaSui01/companion/workflow"
)

// HTTPConfig configures HTTPRetriever.
type HTTPConfig struct {
	BaseURL string
	APIKey  string

	// TopK caps the documents returned per store. Defaults to 3.
	TopK int

	// Timeout bounds each search. Defaults to 10s.
	Timeout time.Duration
}

// searchRequest is the body of a store search.
type searchRequest struct {
	Query string `json:"query"`
	Agent string `json:"agent,omitempty"`
	TopK  int    `json:"top_k"`
}

// Document is one search hit.
type Document struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchResponse struct {
	Documents []Document `json:"documents"`
}

// HTTPRetriever queries the example and knowledge stores of a retrieval
// service.
type HTTPRetriever struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

var _ Retriever = (*HTTPRetriever)(nil)

// NewHTTPRetriever creates an HTTPRetriever.
func NewHTTPRetriever(cfg HTTPConfig, logger *zap.Logger) *HTTPRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPRetriever{
		cfg:    cfg,
		client: tlsutil.NewHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "rag_retriever")),
	}
}

// WithHTTPClient swaps the underlying http.Client. Used by tests.
func (r *HTTPRetriever) WithHTTPClient(hc *http.Client) *HTTPRetriever {
	if hc != nil {
		r.client = hc
	}
	return r
}

// GetContext searches both stores at once. An empty prompt skips its store.
func (r *HTTPRetriever) GetContext(ctx context.Context, req ContextRequest) (Context, error) {
	var out Context
	outcomes := workflow.Join(ctx,
		workflow.NewOp("examples", func(ctx context.Context) error {
			docs, err := r.search(ctx, "/v1/examples/search", req.Agent, req.FewShotPrompt)
			out.Examples = Render(docs)
			return err
		}),
		workflow.NewOp("knowledge", func(ctx context.Context) error {
			docs, err := r.search(ctx, "/v1/knowledge/search", req.Agent, req.KnowledgePrompt)
			out.Knowledge = Render(docs)
			return err
		}),
	)
	for _, oc := range outcomes {
		if oc.Err != nil {
			r.logger.Warn("retrieval failed", zap.String("store", oc.Name), zap.Error(oc.Err))
			return Context{}, oc.Err
		}
	}
	return out, nil
}

// Render joins document contents in rank order, separated by blank lines.
func Render(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if c := strings.TrimSpace(d.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (r *HTTPRetriever) search(ctx context.Context, path, agent, query string) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	payload, err := json.Marshal(searchRequest{Query: query, Agent: agent, TopK: r.cfg.TopK})
	if err != nil {
		return nil, types.ProcessingError(OpGetContext, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(r.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return nil, types.ConnectionError(OpGetContext, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, types.ConnectionError(OpGetContext, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, types.ProtocolError(OpGetContext, resp.StatusCode, msg)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, types.ProcessingError(OpGetContext, fmt.Errorf("decode %s: %w", path, err))
	}
	return sr.Documents, nil
}
