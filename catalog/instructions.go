package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/companion/types"
)

// InstructionID names a pipeline instruction known at compile time.
type InstructionID string

// Reserved instruction identifiers. Every other identifier is an agent name.
const (
	InstructionGeneral InstructionID = "general"
	InstructionMemory  InstructionID = "memory_update"
	InstructionRouter  InstructionID = "router"
)

// IsReserved reports whether id is one of the pipeline identifiers.
func IsReserved(id string) bool {
	switch InstructionID(id) {
	case InstructionGeneral, InstructionMemory, InstructionRouter:
		return true
	}
	return false
}

// InstructionSource lists every instruction.
type InstructionSource interface {
	ListInstructions(ctx context.Context) ([]types.InstructionEntry, error)
}

// Instructions is the one-time-loaded instruction cache.
type Instructions struct {
	source InstructionSource
	logger *zap.Logger

	mu     sync.RWMutex
	loaded bool
	texts  map[string]string
}

// NewInstructions creates an empty catalog backed by source.
func NewInstructions(source InstructionSource, logger *zap.Logger) *Instructions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instructions{
		source: source,
		logger: logger.With(zap.String("component", "instruction_catalog")),
		texts:  map[string]string{},
	}
}

// Load fetches every instruction once, keyed by identifier.
func (c *Instructions) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}
	if c.source == nil {
		return fmt.Errorf("instruction catalog has no source")
	}

	entries, err := c.source.ListInstructions(ctx)
	if err != nil {
		return fmt.Errorf("load instructions: %w", err)
	}

	texts := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Identifier == "" {
			continue
		}
		texts[e.Identifier] = e.Text
	}
	c.texts = texts
	c.loaded = true

	if _, ok := texts[string(InstructionGeneral)]; !ok {
		c.logger.Warn("general instruction missing from catalog")
	}
	c.logger.Info("instruction catalog loaded", zap.Int("entries", len(texts)))
	return nil
}

// Loaded reports whether Load has succeeded.
func (c *Instructions) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Get returns the stored text for identifier, or "" with a warning.
func (c *Instructions) Get(identifier string) string {
	c.mu.RLock()
	text, ok := c.texts[identifier]
	c.mu.RUnlock()

	if !ok {
		c.logger.Warn("instruction not found", zap.String("identifier", identifier))
		return ""
	}
	return text
}

// Pipeline returns a reserved pipeline instruction.
func (c *Instructions) Pipeline(id InstructionID) string {
	return c.Get(string(id))
}

// Compose returns the instruction for identifier with the general instruction
// prefixed. Reserved pipeline identifiers are returned unprefixed.
func (c *Instructions) Compose(identifier string) string {
	text := c.Get(identifier)
	if IsReserved(identifier) {
		return text
	}

	c.mu.RLock()
	general := c.texts[string(InstructionGeneral)]
	c.mu.RUnlock()

	general = strings.TrimSpace(general)
	switch {
	case general == "":
		return text
	case text == "":
		return general
	default:
		return general + "\n\n" + text
	}
}
