package flow

import (
	"sync"
	"time"

	"github.com/BaSui01/companion/types"
)

// EventKind identifies an emitted event.
type EventKind string

const (
	EventMessageReceived   EventKind = "message_received"
	EventAIMessageReceived EventKind = "ai_message_received"
	EventAIMessageChunk    EventKind = "ai_message_chunk"
	EventError             EventKind = "error"
	EventInitialized       EventKind = "initialized"
)

// Event is one notification for the UI layer. Only the field matching Kind
// is set.
type Event struct {
	Kind          EventKind      `json:"type"`
	Message       *types.Message `json:"message,omitempty"`
	Chunk         string         `json:"chunk,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExpectMessage bool           `json:"expect_message,omitempty"`
	At            time.Time      `json:"at"`
}

// Listener receives events synchronously on the emitting goroutine.
type Listener func(Event)

// Observer is the typed alternative to a Listener.
type Observer interface {
	MessageReceived(msg types.Message)
	AIMessageReceived(msg types.Message)
	AIMessageChunkReceived(chunk string)
	ErrorOccurred(message string)
	Initialized(expectImmediateMessage bool)
}

// ObserverListener adapts an Observer to a Listener.
func ObserverListener(o Observer) Listener {
	return func(e Event) {
		switch e.Kind {
		case EventMessageReceived:
			if e.Message != nil {
				o.MessageReceived(*e.Message)
			}
		case EventAIMessageReceived:
			if e.Message != nil {
				o.AIMessageReceived(*e.Message)
			}
		case EventAIMessageChunk:
			o.AIMessageChunkReceived(e.Chunk)
		case EventError:
			o.ErrorOccurred(e.Error)
		case EventInitialized:
			o.Initialized(e.ExpectMessage)
		}
	}
}

// =============================================================================
// Bus
// =============================================================================

// Bus fans events out to subscribers in subscription order. Each
// orchestrator owns its own Bus.
type Bus struct {
	mu        sync.RWMutex
	seq       uint64
	listeners []subscription
}

type subscription struct {
	id uint64
	fn Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers l and returns a function that removes it. The
// returned function is idempotent.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.listeners = append(b.listeners, subscription{id: id, fn: l})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.listeners {
				if s.id == id {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit delivers e to every current subscriber. Listeners may subscribe or
// unsubscribe from inside a callback.
func (b *Bus) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	for i, s := range b.listeners {
		listeners[i] = s.fn
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
