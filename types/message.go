package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved literals the conversation protocol depends on.
const (
	// NoButton marks "no button" in a predefined entry's raw button list.
	NoButton = "none"

	// RoleUser is the serialized role of free-text user turns.
	RoleUser = "user"
	// RoleActivity is the serialized role of activity turns.
	RoleActivity = "activity"
	// ScriptedRolePrefix prefixes the identifier of a scripted message's role.
	ScriptedRolePrefix = "predefined-"
)

// MessageKind discriminates the Message union.
type MessageKind int

const (
	KindUser MessageKind = iota
	KindAgent
	KindScripted
	KindActivity
)

// String returns the kind name.
func (k MessageKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAgent:
		return "agent"
	case KindScripted:
		return "scripted"
	case KindActivity:
		return "activity"
	default:
		return "unknown"
	}
}

// Button links a message to another predefined entry.
type Button struct {
	Identifier  string `json:"identifier"`
	DisplayText string `json:"display_text,omitempty"`
}

// Message is one turn of a conversation. Exactly one of the kind-specific
// fields is meaningful:
//
//	KindUser:     Text
//	KindAgent:    Agent, Text
//	KindScripted: Identifier, Text, Buttons
//	KindActivity: Metadata (Text is its canonical serialization)
type Message struct {
	ID                string      `json:"id"`
	Kind              MessageKind `json:"kind"`
	Agent             string      `json:"agent,omitempty"`
	Identifier        string      `json:"identifier,omitempty"`
	Text              string      `json:"text"`
	Buttons           []Button    `json:"buttons,omitempty"`
	ButtonDisplayName string      `json:"button_display_name,omitempty"`
	Metadata          Metadata    `json:"metadata,omitempty"`
	Timestamp         time.Time   `json:"timestamp"`
}

// NewUserMessage creates a free-text user turn.
func NewUserMessage(text string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Kind: KindUser, Text: text, Timestamp: at}
}

// NewAgentMessage creates a reply produced by the named agent.
func NewAgentMessage(agent, text string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Kind: KindAgent, Agent: agent, Text: text, Timestamp: at}
}

// NewScriptedMessage creates a predefined message for identifier.
func NewScriptedMessage(identifier, text string, buttons []Button, at time.Time) Message {
	return Message{
		ID:         uuid.NewString(),
		Kind:       KindScripted,
		Identifier: identifier,
		Text:       text,
		Buttons:    buttons,
		Timestamp:  at,
	}
}

// NewActivityMessage creates an activity turn whose text mirrors md.
func NewActivityMessage(md Metadata, at time.Time) Message {
	md = md.Clone()
	return Message{
		ID:        uuid.NewString(),
		Kind:      KindActivity,
		Text:      md.Encode(),
		Metadata:  md,
		Timestamp: at,
	}
}

// Role returns the role string used at the storage boundary.
func (m Message) Role() string {
	switch m.Kind {
	case KindAgent:
		return m.Agent
	case KindScripted:
		return ScriptedRolePrefix + m.Identifier
	case KindActivity:
		return RoleActivity
	default:
		return RoleUser
	}
}

// IsUserSide reports whether the turn was authored on the user's side.
func (m Message) IsUserSide() bool {
	return m.Kind == KindUser || m.Kind == KindActivity
}

// WithMetadata replaces the activity payload and keeps Text in sync.
func (m Message) WithMetadata(md Metadata) Message {
	m.Kind = KindActivity
	m.Metadata = md.Clone()
	m.Text = m.Metadata.Encode()
	return m
}

// =============================================================================
// Storage boundary
// =============================================================================

// StoredMessage is the flat record shape exchanged with persistence layers.
type StoredMessage struct {
	ID                string    `json:"id"`
	Role              string    `json:"role"`
	Text              string    `json:"text"`
	Buttons           []Button  `json:"buttons,omitempty"`
	ButtonDisplayName string    `json:"button_display_name,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Encode flattens m into its stored form.
func (m Message) Encode() StoredMessage {
	return StoredMessage{
		ID:                m.ID,
		Role:              m.Role(),
		Text:              m.Text,
		Buttons:           m.Buttons,
		ButtonDisplayName: m.ButtonDisplayName,
		Timestamp:         m.Timestamp,
	}
}

// Decode rebuilds the typed message from a stored record. Any role that is
// not one of the reserved literals is an agent name.
func (s StoredMessage) Decode() Message {
	m := Message{
		ID:                s.ID,
		Text:              s.Text,
		Buttons:           s.Buttons,
		ButtonDisplayName: s.ButtonDisplayName,
		Timestamp:         s.Timestamp,
	}
	switch {
	case s.Role == RoleUser || s.Role == "":
		m.Kind = KindUser
	case s.Role == RoleActivity:
		m.Kind = KindActivity
		md, err := DecodeMetadata(s.Text)
		if err != nil {
			// Unparseable payloads stay visible as context.
			md = Metadata{MetaContext: s.Text}
		}
		m.Metadata = md
	case strings.HasPrefix(s.Role, ScriptedRolePrefix):
		m.Kind = KindScripted
		m.Identifier = strings.TrimPrefix(s.Role, ScriptedRolePrefix)
	default:
		m.Kind = KindAgent
		m.Agent = s.Role
	}
	return m
}
