// MockBackend is an in-memory api.Client with per-operation failure
// injection and call recording.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/companion/api"
	"github.com/BaSui01/companion/types"
)

// MockBackend implements api.Client in memory.
type MockBackend struct {
	mu sync.Mutex

	conversations map[string]types.Conversation
	active        map[string]string // user id -> conversation id
	messages      map[string][]types.Message
	profiles      map[string]types.Profile // conversation id -> profile

	predefined   []types.PredefinedEntry
	instructions []types.InstructionEntry

	failures map[string]error
	calls    []string
	seq      int
	now      func() time.Time
}

var _ api.Client = (*MockBackend)(nil)

// NewMockBackend creates an empty backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		conversations: map[string]types.Conversation{},
		active:        map[string]string{},
		messages:      map[string][]types.Message{},
		profiles:      map[string]types.Profile{},
		failures:      map[string]error{},
		now:           time.Now,
	}
}

// --- builder methods ---

// WithPredefined sets the predefined catalog.
func (m *MockBackend) WithPredefined(entries ...types.PredefinedEntry) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predefined = append([]types.PredefinedEntry(nil), entries...)
	return m
}

// WithInstructions sets the instruction catalog from identifier/text pairs.
func (m *MockBackend) WithInstructions(texts map[string]string) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructions = m.instructions[:0]
	for id, text := range texts {
		m.instructions = append(m.instructions, types.InstructionEntry{Identifier: id, Text: text})
	}
	sort.Slice(m.instructions, func(i, j int) bool {
		return m.instructions[i].Identifier < m.instructions[j].Identifier
	})
	return m
}

// WithConversation seeds an active conversation for userID with history.
func (m *MockBackend) WithConversation(userID, conversationID string, history ...types.Message) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversationID] = types.Conversation{ID: conversationID, UserID: userID, CreatedAt: m.now()}
	m.active[userID] = conversationID
	m.messages[conversationID] = append([]types.Message(nil), history...)
	return m
}

// WithProfile seeds the profile of a conversation.
func (m *MockBackend) WithProfile(conversationID, profileID, summary string) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[conversationID] = types.Profile{ID: profileID, ConversationID: conversationID, Summary: summary}
	return m
}

// WithClock overrides the time source used for created records.
func (m *MockBackend) WithClock(now func() time.Time) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// FailOn makes every call of op return err. A nil err clears the failure.
func (m *MockBackend) FailOn(op string, err error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
	} else {
		m.failures[op] = err
	}
	return m
}

// --- inspection ---

// Calls returns every operation name in call order.
func (m *MockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how often op was called.
func (m *MockBackend) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Messages returns the stored messages of a conversation in append order.
func (m *MockBackend) Messages(conversationID string) []types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Message(nil), m.messages[conversationID]...)
}

// ProfileOf returns the stored profile of a conversation.
func (m *MockBackend) ProfileOf(conversationID string) (types.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[conversationID]
	return p, ok
}

func (m *MockBackend) enter(op string) error {
	m.calls = append(m.calls, op)
	return m.failures[op]
}

func (m *MockBackend) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// --- api.Client ---

func (m *MockBackend) GetOrCreateConversation(_ context.Context, userID string, forceNew bool) (types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpGetOrCreateConversation); err != nil {
		return types.Conversation{}, err
	}
	if id, ok := m.active[userID]; ok && !forceNew {
		return m.conversations[id], nil
	}
	conv := types.Conversation{ID: m.nextID("conv"), UserID: userID, CreatedAt: m.now()}
	m.conversations[conv.ID] = conv
	m.active[userID] = conv.ID
	return conv, nil
}

func (m *MockBackend) GetConversation(_ context.Context, conversationID string) (types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpGetConversation); err != nil {
		return types.Conversation{}, err
	}
	conv, ok := m.conversations[conversationID]
	if !ok {
		return types.Conversation{}, types.ProtocolError(api.OpGetConversation, 404, "conversation not found")
	}
	return conv, nil
}

func (m *MockBackend) ListConversations(_ context.Context, userID string) ([]types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpListConversations); err != nil {
		return nil, err
	}
	var out []types.Conversation
	for _, c := range m.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockBackend) GetOrCreateProfile(_ context.Context, conversationID string) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpGetOrCreateProfile); err != nil {
		return types.Profile{}, err
	}
	if p, ok := m.profiles[conversationID]; ok {
		return p, nil
	}
	p := types.Profile{ID: m.nextID("profile"), ConversationID: conversationID, UpdatedAt: m.now()}
	m.profiles[conversationID] = p
	return p, nil
}

func (m *MockBackend) GetProfile(_ context.Context, profileID string) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpGetProfile); err != nil {
		return types.Profile{}, err
	}
	for _, p := range m.profiles {
		if p.ID == profileID {
			return p, nil
		}
	}
	return types.Profile{}, types.ProtocolError(api.OpGetProfile, 404, "profile not found")
}

func (m *MockBackend) UpdateProfile(_ context.Context, profileID, summary string) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpUpdateProfile); err != nil {
		return types.Profile{}, err
	}
	for conv, p := range m.profiles {
		if p.ID == profileID {
			p.Summary = summary
			p.UpdatedAt = m.now()
			m.profiles[conv] = p
			return p, nil
		}
	}
	return types.Profile{}, types.ProtocolError(api.OpUpdateProfile, 404, "profile not found")
}

func (m *MockBackend) ListMessages(_ context.Context, conversationID string) ([]types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpListMessages); err != nil {
		return nil, err
	}
	return append([]types.Message(nil), m.messages[conversationID]...), nil
}

func (m *MockBackend) AppendMessage(_ context.Context, conversationID string, msg types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpAppendMessage); err != nil {
		return err
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return nil
}

func (m *MockBackend) ListPredefinedMessages(_ context.Context) ([]types.PredefinedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpListPredefinedMessages); err != nil {
		return nil, err
	}
	return append([]types.PredefinedEntry(nil), m.predefined...), nil
}

func (m *MockBackend) ListInstructions(_ context.Context) ([]types.InstructionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(api.OpListInstructions); err != nil {
		return nil, err
	}
	return append([]types.InstructionEntry(nil), m.instructions...), nil
}
