package bridge

import (
	"time"

	"github.com/BaSui01/companion/types"
)

// Client frame types.
const (
	FrameMessage  = "message"
	FrameButton   = "button"
	FrameActivity = "activity"
	FrameReset    = "reset"
)

// Server-only frame types. Every other server frame is a flow.Event whose
// type is its event kind.
const (
	FrameSnapshot = "snapshot"
	FrameRejected = "rejected"
)

// ClientFrame is one input from the UI.
//
//	{"type":"message","text":"hi"}
//	{"type":"button","identifier":"week1_day2"}
//	{"type":"activity","metadata":{"context":"opened diary"}}
//	{"type":"reset","metadata":{"user_name":"Sam"}}
type ClientFrame struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	Metadata   types.Metadata `json:"metadata,omitempty"`
}

// SnapshotFrame is sent once after connecting so a UI can render the
// conversation so far.
type SnapshotFrame struct {
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	ConversationID string          `json:"conversation_id,omitempty"`
	History        []types.Message `json:"history"`
}

// RejectedFrame reports an input the orchestrator refused without emitting
// an error event: it was busy, not ready, or the frame was malformed.
type RejectedFrame struct {
	Type  string    `json:"type"`
	Input string    `json:"input"`
	Code  string    `json:"code"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

func rejected(input string, code types.ErrorCode, msg string) RejectedFrame {
	return RejectedFrame{Type: FrameRejected, Input: input, Code: string(code), Error: msg, At: time.Now()}
}

// silentRejection reports whether err was returned without an error event.
func silentRejection(err error) bool {
	switch types.GetErrorCode(err) {
	case types.ErrTurnInProgress, types.ErrNotReady:
		return true
	}
	return false
}
