package api

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/companion/types"
)

// =============================================================================
// Wire envelope
// =============================================================================

// Response is the envelope every backend endpoint answers with.
type Response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// ErrorInfo describes a failed backend call.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// =============================================================================
// Request bodies
// =============================================================================

// ConversationRequest asks for the user's conversation.
type ConversationRequest struct {
	UserID   string `json:"user_id"`
	ForceNew bool   `json:"force_new,omitempty"`
}

// ProfileRequest asks for the profile of a conversation.
type ProfileRequest struct {
	ConversationID string `json:"conversation_id"`
}

// ProfileUpdateRequest replaces a profile summary.
type ProfileUpdateRequest struct {
	Summary string `json:"summary"`
}

// MessagePayload is the stored form of one message.
type MessagePayload = types.StoredMessage
