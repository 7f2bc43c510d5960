package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_RoleBoundary(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		msg      Message
		wantRole string
	}{
		{name: "user", msg: NewUserMessage("hi", at), wantRole: "user"},
		{name: "agent", msg: NewAgentMessage("coach", "hello", at), wantRole: "coach"},
		{name: "scripted", msg: NewScriptedMessage("week1_day0", "welcome", nil, at), wantRole: "predefined-week1_day0"},
		{name: "activity", msg: NewActivityMessage(Metadata{MetaContext: "opened"}, at), wantRole: "activity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored := tt.msg.Encode()
			assert.Equal(t, tt.wantRole, stored.Role)

			decoded := stored.Decode()
			assert.Equal(t, tt.msg.Kind, decoded.Kind)
			assert.Equal(t, tt.msg.Agent, decoded.Agent)
			assert.Equal(t, tt.msg.Identifier, decoded.Identifier)
			assert.Equal(t, tt.msg.Text, decoded.Text)
		})
	}
}

func TestMessage_ActivityTextTracksMetadata(t *testing.T) {
	md := Metadata{MetaUserName: "Sam", MetaButtonID: "week1_day1"}
	msg := NewActivityMessage(md, time.Now())

	assert.Equal(t, `{"button_identifier":"week1_day1","user_name":"Sam"}`, msg.Text)

	// Mutating the caller's map must not leak into the message.
	md[MetaUserName] = "Alex"
	assert.Equal(t, "Sam", msg.Metadata[MetaUserName])

	updated := msg.WithMetadata(Metadata{MetaContext: "resume"})
	assert.Equal(t, `{"context":"resume"}`, updated.Text)
	assert.Equal(t, KindActivity, updated.Kind)
}

func TestStoredMessage_DecodeInvalidActivity(t *testing.T) {
	stored := StoredMessage{Role: RoleActivity, Text: "not json"}
	msg := stored.Decode()

	require.Equal(t, KindActivity, msg.Kind)
	assert.Equal(t, "not json", msg.Metadata[MetaContext])
}

func TestMetadata_StartDateAndDefaults(t *testing.T) {
	md := Metadata{}
	md.SetDefault(MetaStartDate, "2024-03-01T08:00:00Z")
	md.SetDefault(MetaStartDate, "2030-01-01T00:00:00Z")
	md.SetDefault(MetaUserName, "")

	start, ok := md.StartDate(nil)
	require.True(t, ok)
	assert.Equal(t, 2024, start.Year())
	_, hasUser := md[MetaUserName]
	assert.False(t, hasUser)

	dateOnly := Metadata{MetaStartDate: "2024-05-06"}
	start, ok = dateOnly.StartDate(nil)
	require.True(t, ok)
	assert.Equal(t, time.May, start.Month())

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start, ok = dateOnly.StartDate(ny)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, ny), start)

	_, ok = Metadata{MetaStartDate: "yesterday"}.StartDate(nil)
	assert.False(t, ok)
}
