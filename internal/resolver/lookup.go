package resolver

import (
	"sync"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Outcome classifies a settings cache lookup.
type Outcome int

const (
	// NotFound means the schema was never evaluated for the entity: it does
	// not target the entity's type or role.
	NotFound Outcome = iota
	// NoMatch means the schema targets the type or role but its id
	// allow-list excludes the entity.
	NoMatch
	// Found means the schema applies.
	Found
)

func (o Outcome) String() string {
	switch o {
	case NoMatch:
		return "no-match"
	case Found:
		return "found"
	default:
		return "not-found"
	}
}

// Lookup is the tagged result of a settings cache query. Schema is set only
// when Outcome is Found.
type Lookup struct {
	Outcome Outcome
	Schema  *types.Schema
}

type targetKey struct {
	kind types.MetaKind
	id   int64
}

// settingsEntry records how one defined schema was evaluated. unrestricted
// is set for schemas without an id allow-list; byTarget holds per-entity
// verdicts for schemas with one (nil meaning NoMatch).
type settingsEntry struct {
	unrestricted *types.Schema
	byTarget     map[targetKey]*types.Schema
}

// SettingsCache remembers, per defined schema, the outcome of matching it
// against entities during resolution.
type SettingsCache struct {
	mu      sync.RWMutex
	entries map[string]*settingsEntry
}

// NewSettingsCache returns an empty cache.
func NewSettingsCache() *SettingsCache {
	return &SettingsCache{entries: make(map[string]*settingsEntry)}
}

func (c *SettingsCache) entry(schemaID string) *settingsEntry {
	e, ok := c.entries[schemaID]
	if !ok {
		e = &settingsEntry{byTarget: make(map[targetKey]*types.Schema)}
		c.entries[schemaID] = e
	}
	return e
}

func (c *SettingsCache) saveUnrestricted(s *types.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(s.ID).unrestricted = s
}

// saveTarget records the verdict for one entity; a nil schema records NoMatch.
func (c *SettingsCache) saveTarget(schemaID string, kind types.MetaKind, id int64, s *types.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(schemaID).byTarget[targetKey{kind: kind, id: id}] = s
}

// Lookup returns the cached verdict. With an empty kind only unrestricted
// schemas are reported.
func (c *SettingsCache) Lookup(schemaID string, kind types.MetaKind, id int64) Lookup {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[schemaID]
	if !ok {
		return Lookup{Outcome: NotFound}
	}
	if kind != "" {
		if s, ok := e.byTarget[targetKey{kind: kind, id: id}]; ok {
			if s == nil {
				return Lookup{Outcome: NoMatch}
			}
			return Lookup{Outcome: Found, Schema: s}
		}
	}
	if e.unrestricted != nil {
		return Lookup{Outcome: Found, Schema: e.unrestricted}
	}
	return Lookup{Outcome: NotFound}
}

// Reset drops every entry.
func (c *SettingsCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*settingsEntry)
}
