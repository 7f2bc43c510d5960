package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/companion/types"
)

type instructionSourceFunc func(ctx context.Context) ([]types.InstructionEntry, error)

func (f instructionSourceFunc) ListInstructions(ctx context.Context) ([]types.InstructionEntry, error) {
	return f(ctx)
}

func loadedInstructions(t *testing.T, entries ...types.InstructionEntry) *Instructions {
	t.Helper()
	c := NewInstructions(instructionSourceFunc(func(ctx context.Context) ([]types.InstructionEntry, error) {
		return entries, nil
	}), nil)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestInstructions_Get(t *testing.T) {
	c := loadedInstructions(t,
		types.InstructionEntry{Identifier: "coach", Text: "Be a coach."},
	)

	assert.Equal(t, "Be a coach.", c.Get("coach"))
	assert.Equal(t, "", c.Get("missing"))
}

func TestInstructions_Compose(t *testing.T) {
	c := loadedInstructions(t,
		types.InstructionEntry{Identifier: "general", Text: "Be kind."},
		types.InstructionEntry{Identifier: "coach", Text: "Be a coach."},
		types.InstructionEntry{Identifier: "router", Text: "Pick an agent."},
		types.InstructionEntry{Identifier: "memory_update", Text: "Update the profile."},
	)

	tests := []struct {
		id   string
		want string
	}{
		{id: "coach", want: "Be kind.\n\nBe a coach."},
		{id: "general", want: "Be kind."},
		{id: "router", want: "Pick an agent."},
		{id: "memory_update", want: "Update the profile."},
		{id: "unknown_agent", want: "Be kind."},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Compose(tt.id))
		})
	}
}

func TestInstructions_ComposeWithoutGeneral(t *testing.T) {
	c := loadedInstructions(t, types.InstructionEntry{Identifier: "coach", Text: "Be a coach."})
	assert.Equal(t, "Be a coach.", c.Compose("coach"))
}

func TestInstructions_PipelineAndReserved(t *testing.T) {
	c := loadedInstructions(t, types.InstructionEntry{Identifier: "router", Text: "route"})

	assert.Equal(t, "route", c.Pipeline(InstructionRouter))
	assert.True(t, IsReserved("general"))
	assert.True(t, IsReserved("memory_update"))
	assert.False(t, IsReserved("coach"))
}

func TestInstructions_LoadWithoutSource(t *testing.T) {
	c := NewInstructions(nil, nil)
	assert.Error(t, c.Load(context.Background()))
	assert.False(t, c.Loaded())
}
