package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/companion/types"
)

type conversationRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"size:128;index:idx_conversation_user"`
	Active    bool      `gorm:"index:idx_conversation_user"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
}

func (conversationRow) TableName() string { return "conversations" }

func (r conversationRow) toType() types.Conversation {
	return types.Conversation{ID: r.ID, UserID: r.UserID, CreatedAt: r.CreatedAt}
}

type profileRow struct {
	ID             string `gorm:"primaryKey;size:64"`
	ConversationID string `gorm:"size:64;uniqueIndex"`
	Summary        string `gorm:"type:text"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (profileRow) TableName() string { return "profiles" }

func (r profileRow) toType() types.Profile {
	return types.Profile{ID: r.ID, ConversationID: r.ConversationID, Summary: r.Summary, UpdatedAt: r.UpdatedAt}
}

// messageRow stores a message in its flat role/text form. Seq breaks
// timestamp ties in insertion order.
type messageRow struct {
	Seq               uint64    `gorm:"primaryKey;autoIncrement"`
	MessageID         string    `gorm:"size:64;uniqueIndex"`
	ConversationID    string    `gorm:"size:64;index:idx_message_conversation"`
	Role              string    `gorm:"size:128"`
	Text              string    `gorm:"type:text"`
	Buttons           string    `gorm:"type:text"`
	ButtonDisplayName string    `gorm:"size:255"`
	Timestamp         time.Time `gorm:"column:sent_at;index:idx_message_conversation"`
}

func (messageRow) TableName() string { return "messages" }

func newMessageRow(conversationID string, stored types.StoredMessage) (messageRow, error) {
	row := messageRow{
		MessageID:         stored.ID,
		ConversationID:    conversationID,
		Role:              stored.Role,
		Text:              stored.Text,
		ButtonDisplayName: stored.ButtonDisplayName,
		Timestamp:         stored.Timestamp,
	}
	buttons, err := encodeButtons(stored.Buttons)
	if err != nil {
		return messageRow{}, err
	}
	row.Buttons = buttons
	return row, nil
}

func (r messageRow) toStored() (types.StoredMessage, error) {
	buttons, err := decodeButtons(r.Buttons)
	if err != nil {
		return types.StoredMessage{}, err
	}
	return types.StoredMessage{
		ID:                r.MessageID,
		Role:              r.Role,
		Text:              r.Text,
		Buttons:           buttons,
		ButtonDisplayName: r.ButtonDisplayName,
		Timestamp:         r.Timestamp,
	}, nil
}

type predefinedRow struct {
	Identifier        string `gorm:"primaryKey;size:128"`
	Content           string `gorm:"type:text"`
	Buttons           string `gorm:"type:text"`
	ButtonDisplayName string `gorm:"size:255"`
}

func (predefinedRow) TableName() string { return "predefined_messages" }

type instructionRow struct {
	Identifier string `gorm:"primaryKey;size:128"`
	Text       string `gorm:"type:text"`
}

func (instructionRow) TableName() string { return "instructions" }

func encodeButtons(buttons []types.Button) (string, error) {
	if len(buttons) == 0 {
		return "", nil
	}
	data, err := json.Marshal(buttons)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeButtons(raw string) ([]types.Button, error) {
	if raw == "" {
		return nil, nil
	}
	var buttons []types.Button
	if err := json.Unmarshal([]byte(raw), &buttons); err != nil {
		return nil, err
	}
	return buttons, nil
}
