package types

import "time"

// Conversation is the remote conversation record.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the AI-maintained summary of the user for one conversation.
type Profile struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PredefinedEntry is a scripted, backend-authored message. Buttons are
// unresolved: only their identifiers are meaningful.
type PredefinedEntry struct {
	Identifier        string   `json:"identifier"`
	Content           string   `json:"content"`
	Buttons           []Button `json:"buttons,omitempty"`
	ButtonDisplayName string   `json:"button_display_name,omitempty"`
}

// InstructionEntry is one agent or pipeline instruction.
type InstructionEntry struct {
	Identifier string `json:"identifier"`
	Text       string `json:"text"`
}
