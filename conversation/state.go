package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/companion/types"
)

// State is the in-memory record of the active conversation. Messages may be
// appended in any order; every read returns them sorted by timestamp.
type State struct {
	mu             sync.RWMutex
	conversationID string
	profileID      string
	profileSummary string
	history        []types.Message
}

// NewState creates an empty state.
func NewState() *State {
	return &State{}
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	ConversationID string
	ProfileID      string
	ProfileSummary string
	History        []types.Message
}

// Snapshot copies the whole state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ConversationID: s.conversationID,
		ProfileID:      s.profileID,
		ProfileSummary: s.profileSummary,
		History:        sortedCopy(s.history),
	}
}

// SetConversation records the active conversation id.
func (s *State) SetConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
}

// ConversationID returns the active conversation id.
func (s *State) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// SetProfile records the profile id and its current summary.
func (s *State) SetProfile(id, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileID = id
	s.profileSummary = summary
}

// ProfileID returns the profile id.
func (s *State) ProfileID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileID
}

// ProfileSummary returns the rendered profile summary.
func (s *State) ProfileSummary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileSummary
}

// UpdateProfileSummary replaces the summary, keeping the profile id.
func (s *State) UpdateProfileSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileSummary = summary
}

// ReplaceHistory swaps in messages loaded from storage.
func (s *State) ReplaceHistory(messages []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]types.Message(nil), messages...)
}

// Append adds a message to the history.
func (s *State) Append(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
}

// History returns the messages sorted ascending by timestamp.
func (s *State) History() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedCopy(s.history)
}

// Len returns the number of messages.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Last returns the chronologically last message.
func (s *State) Last() (types.Message, bool) {
	h := s.History()
	if len(h) == 0 {
		return types.Message{}, false
	}
	return h[len(h)-1], true
}

// HasScripted reports whether a predefined message with identifier was
// already delivered.
func (s *State) HasScripted(identifier string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.history {
		if m.Kind == types.KindScripted && m.Identifier == identifier {
			return true
		}
	}
	return false
}

// AnchorDate returns the conversation's start date: the start date carried
// by the first activity message that has one, else the timestamp of the
// earliest message. Date-only start dates are read in loc.
func (s *State) AnchorDate(loc *time.Location) (time.Time, bool) {
	return AnchorDate(s.History(), loc)
}

// Reset clears everything. Used when a new conversation is forced.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = ""
	s.profileID = ""
	s.profileSummary = ""
	s.history = nil
}

// AnchorDate resolves the anchor start date of a sorted history.
func AnchorDate(history []types.Message, loc *time.Location) (time.Time, bool) {
	for _, m := range history {
		if m.Kind != types.KindActivity {
			continue
		}
		if start, ok := m.Metadata.StartDate(loc); ok {
			return start, true
		}
	}
	if len(history) == 0 {
		return time.Time{}, false
	}
	return history[0].Timestamp, true
}

// SortByTimestamp sorts messages ascending by timestamp, keeping insertion
// order for equal timestamps.
func SortByTimestamp(messages []types.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}

func sortedCopy(messages []types.Message) []types.Message {
	out := append([]types.Message(nil), messages...)
	SortByTimestamp(out)
	return out
}
