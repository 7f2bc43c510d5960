package api

import (
	"context"

	"github.com/BaSui01/companion/types"
)

// Client is the remote conversation backend. Every failure is a *types.Error
// classified as a connection, protocol or processing error.
type Client interface {
	GetOrCreateConversation(ctx context.Context, userID string, forceNew bool) (types.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (types.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]types.Conversation, error)

	GetOrCreateProfile(ctx context.Context, conversationID string) (types.Profile, error)
	GetProfile(ctx context.Context, profileID string) (types.Profile, error)
	UpdateProfile(ctx context.Context, profileID, summary string) (types.Profile, error)

	ListMessages(ctx context.Context, conversationID string) ([]types.Message, error)
	AppendMessage(ctx context.Context, conversationID string, msg types.Message) error

	ListPredefinedMessages(ctx context.Context) ([]types.PredefinedEntry, error)
	ListInstructions(ctx context.Context) ([]types.InstructionEntry, error)
}

// Operation names used in errors, logs and metrics.
const (
	OpGetOrCreateConversation = "GetOrCreateConversation"
	OpGetConversation         = "GetConversation"
	OpListConversations       = "ListConversations"
	OpGetOrCreateProfile      = "GetOrCreateProfile"
	OpGetProfile              = "GetProfile"
	OpUpdateProfile           = "UpdateProfile"
	OpListMessages            = "ListMessages"
	OpAppendMessage           = "AppendMessage"
	OpListPredefinedMessages  = "ListPredefinedMessages"
	OpListInstructions        = "ListInstructions"
)
