// MockAI is a scriptable llm.Service.
package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/BaSui01/companion/llm"
	"github.com/BaSui01/companion/types"
)

// ProfileCall records one GenerateProfile call.
type ProfileCall struct {
	Current     string
	Instruction string
	HistoryLen  int
}

// RouteCall records one SelectAgentAndPrompts call.
type RouteCall struct {
	Instruction string
	HistoryLen  int
}

// MockAI implements llm.Service with fixed answers.
type MockAI struct {
	mu sync.Mutex

	route   llm.Route
	chunks  []string
	profile string
	errs    map[string]error

	routeCalls    []RouteCall
	generateCalls []llm.GenerateRequest
	profileCalls  []ProfileCall
}

var _ llm.Service = (*MockAI)(nil)

// NewMockAI creates a MockAI routing to "default" and replying "Mock reply".
func NewMockAI() *MockAI {
	return &MockAI{
		route:   llm.Route{Agent: "default"},
		chunks:  []string{"Mock reply"},
		profile: "Mock profile",
		errs:    map[string]error{},
	}
}

// WithRoute sets the routing decision.
func (m *MockAI) WithRoute(route llm.Route) *MockAI {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route = route
	return m
}

// WithReply sets the streamed reply; the full reply is the concatenation.
func (m *MockAI) WithReply(chunks ...string) *MockAI {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append([]string(nil), chunks...)
	return m
}

// WithProfile sets the regenerated profile summary.
func (m *MockAI) WithProfile(summary string) *MockAI {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = summary
	return m
}

// FailOn makes op return err. A nil err clears the failure.
func (m *MockAI) FailOn(op string, err error) *MockAI {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
	} else {
		m.errs[op] = err
	}
	return m
}

// RouteCalls returns the recorded routing calls.
func (m *MockAI) RouteCalls() []RouteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RouteCall(nil), m.routeCalls...)
}

// GenerateCalls returns the recorded generation requests.
func (m *MockAI) GenerateCalls() []llm.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.GenerateRequest(nil), m.generateCalls...)
}

// ProfileCalls returns the recorded profile calls.
func (m *MockAI) ProfileCalls() []ProfileCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProfileCall(nil), m.profileCalls...)
}

func (m *MockAI) SelectAgentAndPrompts(_ context.Context, history []types.Message, routerInstruction string) (llm.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeCalls = append(m.routeCalls, RouteCall{Instruction: routerInstruction, HistoryLen: len(history)})
	if err := m.errs[llm.OpSelectAgent]; err != nil {
		return llm.Route{}, err
	}
	return m.route, nil
}

func (m *MockAI) GenerateResponse(_ context.Context, req llm.GenerateRequest, onChunk llm.ChunkFunc) (string, error) {
	m.mu.Lock()
	m.generateCalls = append(m.generateCalls, req)
	err := m.errs[llm.OpGenerateResponse]
	chunks := append([]string(nil), m.chunks...)
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	for _, c := range chunks {
		if onChunk != nil {
			onChunk(c)
		}
	}
	return strings.Join(chunks, ""), nil
}

func (m *MockAI) GenerateProfile(_ context.Context, current string, history []types.Message, instruction string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profileCalls = append(m.profileCalls, ProfileCall{Current: current, Instruction: instruction, HistoryLen: len(history)})
	if err := m.errs[llm.OpGenerateProfile]; err != nil {
		return "", err
	}
	return m.profile, nil
}
