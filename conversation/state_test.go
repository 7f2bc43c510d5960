package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/companion/schedule"
	"github.com/BaSui01/companion/types"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestState_HistorySortedRegardlessOfInsertOrder(t *testing.T) {
	s := NewState()
	s.Append(types.NewUserMessage("third", base.Add(2*time.Minute)))
	s.Append(types.NewUserMessage("first", base))
	s.Append(types.NewUserMessage("second", base.Add(time.Minute)))

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, "first", h[0].Text)
	assert.Equal(t, "second", h[1].Text)
	assert.Equal(t, "third", h[2].Text)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "third", last.Text)
}

func TestState_HistoryIsACopy(t *testing.T) {
	s := NewState()
	s.Append(types.NewUserMessage("hi", base))

	h := s.History()
	h[0].Text = "mutated"

	assert.Equal(t, "hi", s.History()[0].Text)
}

func TestState_AnchorDate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, ok := NewState().AnchorDate(nil)
		assert.False(t, ok)
	})

	t.Run("activity metadata wins", func(t *testing.T) {
		s := NewState()
		s.Append(types.NewUserMessage("hello", base))
		s.Append(types.NewActivityMessage(types.Metadata{
			types.MetaStartDate: "2024-02-20T08:00:00Z",
		}, base.Add(time.Second)))

		anchor, ok := s.AnchorDate(time.UTC)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 2, 20, 8, 0, 0, 0, time.UTC), anchor)
	})

	t.Run("falls back to earliest message", func(t *testing.T) {
		s := NewState()
		s.Append(types.NewActivityMessage(types.Metadata{types.MetaContext: "opened"}, base.Add(time.Hour)))
		s.Append(types.NewUserMessage("hello", base))

		anchor, ok := s.AnchorDate(time.UTC)
		require.True(t, ok)
		assert.Equal(t, base, anchor)
	})
}

func TestState_AnchorDateOnlyKeepsCalendarDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, ny)

	s := NewState()
	s.Append(types.NewActivityMessage(types.Metadata{types.MetaStartDate: "2026-03-09"}, now.Add(-24*time.Hour)))

	anchor, ok := s.AnchorDate(ny)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, ny), anchor)
	assert.Equal(t, 1, schedule.DaysBetween(anchor, now))

	next, ok := schedule.NextIdentifier(anchor, now, []string{"week1_day0", "week1_day1", "week1_day2"})
	require.True(t, ok)
	assert.Equal(t, "week1_day1", next)
}

func TestState_ProfileAndReset(t *testing.T) {
	s := NewState()
	s.SetConversation("conv-1")
	s.SetProfile("prof-1", "likes running")
	s.UpdateProfileSummary("likes running and tea")
	s.Append(types.NewScriptedMessage("week1_day0", "welcome", nil, base))

	snap := s.Snapshot()
	assert.Equal(t, "conv-1", snap.ConversationID)
	assert.Equal(t, "prof-1", snap.ProfileID)
	assert.Equal(t, "likes running and tea", snap.ProfileSummary)
	assert.True(t, s.HasScripted("week1_day0"))
	assert.False(t, s.HasScripted("week1_day1"))

	s.Reset()
	assert.Empty(t, s.ConversationID())
	assert.Empty(t, s.ProfileID())
	assert.Empty(t, s.ProfileSummary())
	assert.Zero(t, s.Len())
}

func TestProperty_LoadedHistoryConsumedInOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		offsets := rapid.SliceOfN(rapid.IntRange(0, 100000), 0, 40).Draw(rt, "offsets")
		loaded := make([]types.Message, len(offsets))
		for i, off := range offsets {
			loaded[i] = types.NewUserMessage("m", base.Add(time.Duration(off)*time.Second))
		}

		s := NewState()
		s.ReplaceHistory(loaded)
		h := s.History()

		if len(h) != len(loaded) {
			rt.Fatalf("lost messages: %d != %d", len(h), len(loaded))
		}
		for i := 1; i < len(h); i++ {
			if h[i].Timestamp.Before(h[i-1].Timestamp) {
				rt.Fatalf("history out of order at %d", i)
			}
		}
	})
}
