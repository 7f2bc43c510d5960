package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	_, ok := TurnID(ctx)
	assert.False(t, ok)

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithTurnID(ctx, "turn-1")
	ctx = WithConversationID(ctx, "conv-1")

	v, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-1", v)

	v, ok = TurnID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "turn-1", v)

	v, ok = ConversationID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "conv-1", v)
}

func TestContextKeys_EmptyValueIsAbsent(t *testing.T) {
	ctx := WithTurnID(context.Background(), "")
	_, ok := TurnID(ctx)
	assert.False(t, ok)
}
