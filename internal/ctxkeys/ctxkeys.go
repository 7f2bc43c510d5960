package ctxkeys

import "context"

// contextKey is the key type for values stored in a context.
type contextKey string

const (
	traceIDKey        contextKey = "trace_id"
	turnIDKey         contextKey = "turn_id"
	conversationIDKey contextKey = "conversation_id"
)

// WithTraceID stores the trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace id.
func TraceID(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceIDKey)
}

// WithTurnID stores the id of the turn being handled.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, turnIDKey, turnID)
}

// TurnID returns the id of the turn being handled.
func TurnID(ctx context.Context) (string, bool) {
	return stringValue(ctx, turnIDKey)
}

// WithConversationID stores the active conversation id.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationIDKey, conversationID)
}

// ConversationID returns the active conversation id.
func ConversationID(ctx context.Context) (string, bool) {
	return stringValue(ctx, conversationIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
