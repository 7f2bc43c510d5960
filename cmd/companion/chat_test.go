package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/companion/api"
	"github.com/BaSui01/companion/catalog"
	"github.com/BaSui01/companion/flow"
	"github.com/BaSui01/companion/schedule"
	"github.com/BaSui01/companion/testutil"
	"github.com/BaSui01/companion/testutil/mocks"
	"github.com/BaSui01/companion/types"
)

var chatNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// syncBuffer is a bytes.Buffer safe for the event goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newChatFixture(t *testing.T) (*chatSession, *flow.Orchestrator, *syncBuffer, *mocks.MockBackend) {
	t.Helper()
	backend := mocks.NewMockBackend().
		WithPredefined(
			types.PredefinedEntry{Identifier: "week1_day0", Content: "Welcome", Buttons: []types.Button{{Identifier: "week1_day1"}}},
			types.PredefinedEntry{Identifier: "week1_day1", Content: "Day one", ButtonDisplayName: "Start"},
		).
		WithInstructions(map[string]string{
			string(catalog.InstructionGeneral): "general",
			string(catalog.InstructionMemory):  "memory",
			string(catalog.InstructionRouter):  "router",
		})
	orch, err := flow.New(flow.Config{UserID: "u1"}, flow.Dependencies{
		Client: backend,
		AI:     mocks.NewMockAI().WithReply("Hi ", "there"),
		Scheduler: schedule.New(
			schedule.WithClock(func() time.Time { return chatNow }),
			schedule.WithLocation(time.UTC),
		),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	out := &syncBuffer{}
	s := newChatSession(orch, out, "Ava")
	t.Cleanup(s.Close)
	require.NoError(t, orch.Initialize(t.Context(), flow.InitOptions{}))
	return s, orch, out, backend
}

func TestChatSession_RendersBootstrapWithButtons(t *testing.T) {
	_, _, out, _ := newChatFixture(t)
	assert.Equal(t, "Ava: Welcome\n  [/1] Start\n", out.String())
}

func TestChatSession_MessageStreamsReply(t *testing.T) {
	s, _, out, _ := newChatFixture(t)

	quit, err := s.handleLine(t.Context(), "hello")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.True(t, strings.HasSuffix(out.String(), "Ava: Hi there\n"), out.String())
}

func TestChatSession_NumberedButton(t *testing.T) {
	s, _, out, backend := newChatFixture(t)

	_, err := s.handleLine(t.Context(), "/1")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Ava: Day one\n")
	assert.Equal(t, 0, len(s.buttons))

	_, err = s.handleLine(t.Context(), "/1")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidInput))
	assert.Equal(t, 1, backend.CallCount(api.OpListPredefinedMessages))
}

func TestChatSession_UnknownButtonRendersErrorEvent(t *testing.T) {
	s, _, out, _ := newChatFixture(t)

	_, err := s.handleLine(t.Context(), "/button week9_day9")
	require.NoError(t, err, "emitted errors are not repeated")
	assert.Contains(t, out.String(), `! predefined message "week9_day9" not found`)
}

func TestChatSession_ResetAndQuit(t *testing.T) {
	s, orch, _, _ := newChatFixture(t)
	first := orch.Snapshot().ConversationID

	_, err := s.handleLine(t.Context(), "/reset")
	require.NoError(t, err)
	assert.NotEqual(t, first, orch.Snapshot().ConversationID)

	quit, err := s.handleLine(t.Context(), "/quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestChatSession_Activity(t *testing.T) {
	s, orch, _, _ := newChatFixture(t)

	_, err := s.handleLine(t.Context(), "/activity context=walk user_name=Sam")
	require.NoError(t, err)
	var activity *types.Message
	for _, m := range orch.Snapshot().History {
		if m.Kind == types.KindActivity && m.Metadata[types.MetaContext] != "" {
			activity = &m
		}
	}
	require.NotNil(t, activity)
	assert.Equal(t, "walk", activity.Metadata[types.MetaContext])
	assert.Equal(t, "Sam", activity.Metadata[types.MetaUserName])

	_, err = s.handleLine(t.Context(), "/activity broken")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidInput))
}

func TestChatSession_UnknownCommand(t *testing.T) {
	s, _, _, _ := newChatFixture(t)
	_, err := s.handleLine(t.Context(), "/dance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	quit, err := s.handleLine(t.Context(), "   ")
	assert.NoError(t, err)
	assert.False(t, quit)
}

func TestChatSession_RunStopsAtEOF(t *testing.T) {
	s, _, out, _ := newChatFixture(t)

	require.NoError(t, s.Run(testutil.TestContext(t), strings.NewReader("hello\n/help\n/quit\nnever sent\n")))

	assert.Contains(t, out.String(), "Ava: Hi there\n")
	assert.Contains(t, out.String(), "/reset")
	assert.NotContains(t, out.String(), "never sent")
}

func TestSilenceEmitted(t *testing.T) {
	assert.NoError(t, silenceEmitted(nil))
	assert.NoError(t, silenceEmitted(types.NotFoundError("predefined message", "x")))
	assert.Error(t, silenceEmitted(types.NewError(types.ErrTurnInProgress, "busy")))
	assert.Error(t, silenceEmitted(types.NewError(types.ErrNotReady, "not ready")))
}
