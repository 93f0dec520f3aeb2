// Package resolver decides which schemas apply to an entity. Schemas come
// from a SchemaSource, filtered by their Applicability, followed by whatever
// registered contributors add. Results are cached per resolver instance.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Cache names reported to the Observer.
const (
	CacheResolved = "resolved"
	CacheDefined  = "defined"
)

// Observer receives cache hit and miss events.
type Observer interface {
	ObserveCache(cache string, hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveCache(string, bool) {}

type resolvedKey struct {
	kind       types.MetaKind
	typeOrRole string
	id         int64
}

type definedKey struct {
	kind       types.MetaKind
	typeOrRole string
}

// Resolver maps entities to schemas. Its caches live as long as the
// instance; call Reset to start over.
type Resolver struct {
	source       types.SchemaSource
	contributors []types.Contributor
	logger       *slog.Logger
	observer     Observer

	mu       sync.Mutex
	resolved map[resolvedKey][]*types.Schema
	defined  map[definedKey][]*types.Schema
	settings *SettingsCache
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver sets the cache observer.
func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithContributors registers contributors in order.
func WithContributors(cs ...types.Contributor) Option {
	return func(r *Resolver) {
		r.contributors = append(r.contributors, cs...)
	}
}

// New creates a Resolver. source may be nil when every schema is contributed
// from code.
func New(source types.SchemaSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:   source,
		logger:   slog.Default(),
		observer: nopObserver{},
		resolved: make(map[resolvedKey][]*types.Schema),
		defined:  make(map[definedKey][]*types.Schema),
		settings: NewSettingsCache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends a contributor. Contributors run in registration order.
func (r *Resolver) Register(c types.Contributor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contributors = append(r.contributors, c)
}

// Resolve returns the schemas that apply to target, in order: matching
// defined schemas first, then contributed ones.
func (r *Resolver) Resolve(ctx context.Context, target types.Target) ([]*types.Schema, error) {
	key := resolvedKey{kind: target.Kind, typeOrRole: target.TypeOrRole, id: target.ID}

	r.mu.Lock()
	cached, ok := r.resolved[key]
	contributors := slices.Clone(r.contributors)
	r.mu.Unlock()
	r.observer.ObserveCache(CacheResolved, ok)
	if ok {
		return slices.Clone(cached), nil
	}

	defined, err := r.definedFor(ctx, target.Kind, target.TypeOrRole)
	if err != nil {
		return nil, err
	}

	var out []*types.Schema
	for _, s := range defined {
		if len(s.Applicability.EntityIDs) == 0 {
			r.settings.saveUnrestricted(s)
			out = append(out, s)
			continue
		}
		if s.Applicability.AllowsID(target.ID) {
			r.settings.saveTarget(s.ID, target.Kind, target.ID, s)
			out = append(out, s)
			continue
		}
		r.settings.saveTarget(s.ID, target.Kind, target.ID, nil)
	}

	for _, c := range contributors {
		added, err := c.ContributeSchemas(ctx, types.ContributionRequest{
			Target:      target,
			Accumulated: slices.Clone(out),
		})
		if err != nil {
			return nil, fmt.Errorf("contributing schemas for %s %q: %w", target.Kind, target.TypeOrRole, err)
		}
		for _, s := range added {
			if s != nil {
				out = append(out, s)
			}
		}
	}

	r.logger.Debug("resolved schemas",
		"kind", string(target.Kind), "type_or_role", target.TypeOrRole, "id", target.ID, "schemas", len(out))

	r.mu.Lock()
	r.resolved[key] = out
	r.mu.Unlock()
	return slices.Clone(out), nil
}

// definedFor returns the defined schemas targeting typeOrRole, ignoring id
// allow-lists. The query result is cached per kind and type or role.
func (r *Resolver) definedFor(ctx context.Context, kind types.MetaKind, typeOrRole string) ([]*types.Schema, error) {
	key := definedKey{kind: kind, typeOrRole: typeOrRole}
	r.mu.Lock()
	cached, ok := r.defined[key]
	r.mu.Unlock()
	r.observer.ObserveCache(CacheDefined, ok)
	if ok {
		return cached, nil
	}

	var matched []*types.Schema
	if r.source != nil {
		all, err := r.source.Schemas(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading schema definitions: %w", err)
		}
		for _, s := range all {
			if s != nil && s.Applicability.Targets(kind, typeOrRole) {
				matched = append(matched, s)
			}
		}
	}

	r.mu.Lock()
	r.defined[key] = matched
	r.mu.Unlock()
	return matched, nil
}

// DefinedCached returns the cached defined-schema query for typeOrRole. ok
// is false until a resolution for that type or role has run.
func (r *Resolver) DefinedCached(kind types.MetaKind, typeOrRole string) ([]*types.Schema, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.defined[definedKey{kind: kind, typeOrRole: typeOrRole}]
	return slices.Clone(s), ok
}

// Cached reports how the defined schema schemaID was evaluated for the entity
// (kind, id). Pass an empty kind to ask only whether it applies without an id
// restriction.
func (r *Resolver) Cached(schemaID string, kind types.MetaKind, id int64) Lookup {
	return r.settings.Lookup(schemaID, kind, id)
}

// Reset clears every cache.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.resolved = make(map[resolvedKey][]*types.Schema)
	r.defined = make(map[definedKey][]*types.Schema)
	r.mu.Unlock()
	r.settings.Reset()
}
