package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/companion/types"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Subscribe(func(Event) { order = append(order, "a") })
	bus.Subscribe(func(Event) { order = append(order, "b") })

	bus.Emit(Event{Kind: EventInitialized})
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(Event) { calls++ })
	bus.Subscribe(func(Event) {})
	assert.Equal(t, 2, bus.Len())

	bus.Emit(Event{Kind: EventError})
	unsubscribe()
	unsubscribe()
	bus.Emit(Event{Kind: EventError})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.Len())
}

func TestBus_UnsubscribeFromCallback(t *testing.T) {
	bus := NewBus()
	calls := 0
	var unsubscribe func()
	unsubscribe = bus.Subscribe(func(Event) {
		calls++
		unsubscribe()
	})

	bus.Emit(Event{Kind: EventError})
	bus.Emit(Event{Kind: EventError})
	assert.Equal(t, 1, calls)
}

func TestBus_StampsTime(t *testing.T) {
	bus := NewBus()
	var got Event
	bus.Subscribe(func(e Event) { got = e })
	bus.Emit(Event{Kind: EventAIMessageChunk, Chunk: "x"})
	assert.False(t, got.At.IsZero())
}

func TestBus_NilListener(t *testing.T) {
	bus := NewBus()
	unsubscribe := bus.Subscribe(nil)
	unsubscribe()
	assert.Equal(t, 0, bus.Len())
}

type observerSpy struct {
	messages   []string
	aiMessages []string
	chunks     []string
	errors     []string
	inits      []bool
}

func (s *observerSpy) MessageReceived(m types.Message)   { s.messages = append(s.messages, m.Text) }
func (s *observerSpy) AIMessageReceived(m types.Message) { s.aiMessages = append(s.aiMessages, m.Text) }
func (s *observerSpy) AIMessageChunkReceived(c string)   { s.chunks = append(s.chunks, c) }
func (s *observerSpy) ErrorOccurred(msg string)          { s.errors = append(s.errors, msg) }
func (s *observerSpy) Initialized(expect bool)           { s.inits = append(s.inits, expect) }

func TestObserverListener(t *testing.T) {
	spy := &observerSpy{}
	l := ObserverListener(spy)

	scripted := types.Message{Text: "scripted"}
	reply := types.Message{Text: "reply"}
	l(Event{Kind: EventInitialized, ExpectMessage: true})
	l(Event{Kind: EventMessageReceived, Message: &scripted})
	l(Event{Kind: EventAIMessageChunk, Chunk: "re"})
	l(Event{Kind: EventAIMessageReceived, Message: &reply})
	l(Event{Kind: EventError, Error: "oops"})
	l(Event{Kind: EventMessageReceived})

	assert.Equal(t, []bool{true}, spy.inits)
	assert.Equal(t, []string{"scripted"}, spy.messages)
	assert.Equal(t, []string{"re"}, spy.chunks)
	assert.Equal(t, []string{"reply"}, spy.aiMessages)
	assert.Equal(t, []string{"oops"}, spy.errors)
}
