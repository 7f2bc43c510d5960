package llm

import (
	"context"

	"github.com/BaSui01/companion/types"
)

// Route is the router's decision for one user turn.
type Route struct {
	// Agent names the agent that should answer. The off-topic agent
	// short-circuits to a scripted reply.
	Agent string `json:"agent"`

	// FewShotPrompt queries the example store.
	FewShotPrompt string `json:"few_shot_prompt,omitempty"`

	// KnowledgePrompt queries the knowledge base.
	KnowledgePrompt string `json:"knowledge_prompt,omitempty"`
}

// GenerateRequest carries everything an agent reply is generated from.
type GenerateRequest struct {
	Agent       string
	Instruction string
	Examples    string
	Knowledge   string
	Profile     string
	History     []types.Message
}

// ChunkFunc receives streamed reply fragments in order.
type ChunkFunc func(chunk string)

// Service is the AI generation collaborator.
type Service interface {
	// SelectAgentAndPrompts routes the conversation to an agent and derives
	// the retrieval prompts.
	SelectAgentAndPrompts(ctx context.Context, history []types.Message, routerInstruction string) (Route, error)

	// GenerateResponse produces the agent reply, streaming fragments to
	// onChunk when it is non-nil. The full reply is returned.
	GenerateResponse(ctx context.Context, req GenerateRequest, onChunk ChunkFunc) (string, error)

	// GenerateProfile rewrites the user profile from the conversation.
	GenerateProfile(ctx context.Context, current string, history []types.Message, instruction string) (string, error)
}

// Operation names used in errors, logs and metrics.
const (
	OpSelectAgent      = "SelectAgentAndPrompts"
	OpGenerateResponse = "GenerateResponse"
	OpGenerateProfile  = "GenerateProfile"
)
