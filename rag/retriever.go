package rag

import (
	"context"

	"github.com/BaSui01/companion/types"
)

// ContextRequest asks for the retrieval context of one agent turn.
type ContextRequest struct {
	Agent           string
	FewShotPrompt   string
	KnowledgePrompt string
	History         []types.Message
}

// Context is the rendered retrieval result.
type Context struct {
	Examples  string
	Knowledge string
}

// Retriever is the retrieval collaborator.
type Retriever interface {
	GetContext(ctx context.Context, req ContextRequest) (Context, error)
}

// OpGetContext names the retrieval operation in errors, logs and metrics.
const OpGetContext = "GetContext"
