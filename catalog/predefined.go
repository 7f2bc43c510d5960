package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/companion/types"
)

// WelcomeIdentifier is the identifier reported when the hardcoded welcome
// literal is served.
const WelcomeIdentifier = "welcome"

// DefaultWelcomeText is served when the catalog holds no entries at all.
const DefaultWelcomeText = "Hi! I'm glad you're here. Tell me a little about how your day is going."

// PredefinedSource lists every predefined message.
type PredefinedSource interface {
	ListPredefinedMessages(ctx context.Context) ([]types.PredefinedEntry, error)
}

// Resolved is a predefined entry whose buttons carry display text.
type Resolved struct {
	Identifier        string
	Content           string
	Buttons           []types.Button
	ButtonDisplayName string
}

// DegradedButton records a button whose target entry was missing at load
// time. Its display text fell back to the identifier.
type DegradedButton struct {
	Owner  string
	Target string
}

// Predefined is the one-time-loaded cache of predefined messages. Entries
// are immutable after Load; a reload needs a new Predefined.
type Predefined struct {
	source  PredefinedSource
	logger  *zap.Logger
	welcome string

	mu       sync.RWMutex
	loaded   bool
	entries  map[string]Resolved
	ids      []string
	degraded []DegradedButton
}

// PredefinedOption configures a Predefined.
type PredefinedOption func(*Predefined)

// WithWelcomeText overrides the last-resort welcome literal.
func WithWelcomeText(text string) PredefinedOption {
	return func(p *Predefined) {
		if text != "" {
			p.welcome = text
		}
	}
}

// NewPredefined creates an empty catalog backed by source.
func NewPredefined(source PredefinedSource, logger *zap.Logger, opts ...PredefinedOption) *Predefined {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Predefined{
		source:  source,
		logger:  logger.With(zap.String("component", "predefined_catalog")),
		welcome: DefaultWelcomeText,
		entries: map[string]Resolved{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load fetches every entry once. Calls after a successful load are no-ops.
func (p *Predefined) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return nil
	}
	if p.source == nil {
		return fmt.Errorf("predefined catalog has no source")
	}

	raw, err := p.source.ListPredefinedMessages(ctx)
	if err != nil {
		return fmt.Errorf("load predefined messages: %w", err)
	}

	p.entries, p.degraded = resolveEntries(raw)
	p.ids = make([]string, 0, len(p.entries))
	for id := range p.entries {
		p.ids = append(p.ids, id)
	}
	sort.Strings(p.ids)
	p.loaded = true

	for _, d := range p.degraded {
		p.logger.Warn("button target missing, showing identifier",
			zap.String("entry", d.Owner),
			zap.String("target", d.Target),
		)
	}
	p.logger.Info("predefined catalog loaded",
		zap.Int("entries", len(p.entries)),
		zap.Int("degraded_buttons", len(p.degraded)),
	)
	return nil
}

// resolveEntries drops sentinel buttons and copies each target's display
// name onto the button pointing at it.
func resolveEntries(raw []types.PredefinedEntry) (map[string]Resolved, []DegradedButton) {
	byID := make(map[string]types.PredefinedEntry, len(raw))
	for _, e := range raw {
		if e.Identifier == "" {
			continue
		}
		byID[e.Identifier] = e
	}

	var degraded []DegradedButton
	resolved := make(map[string]Resolved, len(byID))
	for id, e := range byID {
		buttons := make([]types.Button, 0, len(e.Buttons))
		for _, b := range e.Buttons {
			if b.Identifier == "" || b.Identifier == types.NoButton {
				continue
			}
			text := b.Identifier
			if target, ok := byID[b.Identifier]; ok {
				text = target.ButtonDisplayName
			} else {
				degraded = append(degraded, DegradedButton{Owner: id, Target: b.Identifier})
			}
			buttons = append(buttons, types.Button{Identifier: b.Identifier, DisplayText: text})
		}
		resolved[id] = Resolved{
			Identifier:        id,
			Content:           e.Content,
			Buttons:           buttons,
			ButtonDisplayName: e.ButtonDisplayName,
		}
	}

	sort.Slice(degraded, func(i, j int) bool {
		if degraded[i].Owner != degraded[j].Owner {
			return degraded[i].Owner < degraded[j].Owner
		}
		return degraded[i].Target < degraded[j].Target
	})
	return resolved, degraded
}

// Loaded reports whether Load has succeeded.
func (p *Predefined) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Len returns the number of cached entries.
func (p *Predefined) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Identifiers returns every cached identifier in lexicographic order.
func (p *Predefined) Identifiers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.ids...)
}

// Degraded returns the buttons whose targets were missing.
func (p *Predefined) Degraded() []DegradedButton {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]DegradedButton(nil), p.degraded...)
}

// Lookup returns the entry for identifier.
func (p *Predefined) Lookup(identifier string) (Resolved, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.entries[identifier]
	if !ok {
		return Resolved{}, false
	}
	return r.clone(), true
}

// Resolve returns the entry for identifier or a NOT_FOUND error.
func (p *Predefined) Resolve(identifier string) (Resolved, error) {
	r, ok := p.Lookup(identifier)
	if !ok {
		return Resolved{}, types.NotFoundError("predefined message", identifier)
	}
	return r, nil
}

// ResolveWithFallback resolves identifier, falling back first to the first
// cached entry in identifier order and then to the welcome literal. Every
// downgrade is logged. The returned Resolved names the identifier served.
func (p *Predefined) ResolveWithFallback(identifier string) Resolved {
	if r, ok := p.Lookup(identifier); ok {
		return r
	}

	p.mu.RLock()
	var first string
	if len(p.ids) > 0 {
		first = p.ids[0]
	}
	p.mu.RUnlock()

	if first != "" {
		p.logger.Warn("predefined message missing, serving first cached entry",
			zap.String("requested", identifier),
			zap.String("served", first),
		)
		r, _ := p.Lookup(first)
		return r
	}

	p.logger.Warn("predefined catalog empty, serving welcome literal",
		zap.String("requested", identifier),
	)
	return Resolved{Identifier: WelcomeIdentifier, Content: p.welcome}
}

func (r Resolved) clone() Resolved {
	r.Buttons = append([]types.Button(nil), r.Buttons...)
	return r
}
