package rag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/companion/types"
)

func TestHTTPRetriever_GetContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "coach", req.Agent)
		assert.Equal(t, 2, req.TopK)

		switch r.URL.Path {
		case "/v1/examples/search":
			assert.Equal(t, "stress", req.Query)
			_ = json.NewEncoder(w).Encode(searchResponse{Documents: []Document{{Content: "ex1"}, {Content: " "}, {Content: "ex2"}}})
		case "/v1/knowledge/search":
			assert.Equal(t, "breathing", req.Query)
			_ = json.NewEncoder(w).Encode(searchResponse{Documents: []Document{{Content: "kb1"}}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	r := NewHTTPRetriever(HTTPConfig{BaseURL: srv.URL, TopK: 2}, nil).WithHTTPClient(srv.Client())
	got, err := r.GetContext(t.Context(), ContextRequest{Agent: "coach", FewShotPrompt: "stress", KnowledgePrompt: "breathing"})
	require.NoError(t, err)
	assert.Equal(t, Context{Examples: "ex1\n\nex2", Knowledge: "kb1"}, got)
}

func TestHTTPRetriever_EmptyPromptSkipsStore(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(searchResponse{Documents: []Document{{Content: "kb"}}})
	}))
	defer srv.Close()

	r := NewHTTPRetriever(HTTPConfig{BaseURL: srv.URL}, nil).WithHTTPClient(srv.Client())
	got, err := r.GetContext(t.Context(), ContextRequest{KnowledgePrompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "", got.Examples)
	assert.Equal(t, "kb", got.Knowledge)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPRetriever_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewHTTPRetriever(HTTPConfig{BaseURL: srv.URL}, nil).WithHTTPClient(srv.Client())
	_, err := r.GetContext(t.Context(), ContextRequest{FewShotPrompt: "a", KnowledgePrompt: "b"})
	require.Error(t, err)
	assert.Equal(t, types.ErrProtocol, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "index offline")
}
