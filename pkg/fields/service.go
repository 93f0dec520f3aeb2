// Package fields is the public entry point: it reads custom field values for
// posts and users, saves edited values and copies them between a post and
// its revisions.
//
// A Service ties a metadata store to a schema resolver and the aggregation
// engine:
//
//	svc := fields.New(store,
//	    fields.WithSchemaSource(schemafile.NewSource("schemas.yaml")),
//	    fields.WithContributors(myContributor))
//	v, err := svc.Get(ctx, "checkbox3", 10)
//
// Read operations return nil, without error, when the entity cannot be
// loaded or the field is unknown. Empty fields come back as "" or an empty
// slice.
package fields

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/metafields/internal/engine"
	"github.com/mesh-intelligence/metafields/internal/resolver"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Lookup is the tagged result of SettingsCached.
type Lookup = resolver.Lookup

// Outcome values carried by Lookup.
const (
	NotFound = resolver.NotFound
	NoMatch  = resolver.NoMatch
	Found    = resolver.Found
)

// Observer receives engine and resolver events. *metrics.Collector
// satisfies it.
type Observer interface {
	engine.Observer
	resolver.Observer
}

type options struct {
	logger       *slog.Logger
	observer     Observer
	source       types.SchemaSource
	contributors []types.Contributor
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the logger shared by the engine and the resolver.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithSchemaSource sets where defined schemas come from.
func WithSchemaSource(src types.SchemaSource) Option {
	return func(o *options) { o.source = src }
}

// WithContributors registers code-defined schema contributors in order.
func WithContributors(cs ...types.Contributor) Option {
	return func(o *options) { o.contributors = append(o.contributors, cs...) }
}

// Service answers field queries for one store. It is safe for concurrent
// use; resolver caches live as long as the Service.
type Service struct {
	store    types.MetaStore
	resolver *resolver.Resolver
	engine   *engine.Engine
	logger   *slog.Logger
}

// New creates a Service over store.
func New(store types.MetaStore, opts ...Option) *Service {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	engineOpts := []engine.Option{engine.WithLogger(o.logger)}
	resolverOpts := []resolver.Option{
		resolver.WithLogger(o.logger),
		resolver.WithContributors(o.contributors...),
	}
	if o.observer != nil {
		engineOpts = append(engineOpts, engine.WithObserver(o.observer))
		resolverOpts = append(resolverOpts, resolver.WithObserver(o.observer))
	}

	return &Service{
		store:    store,
		resolver: resolver.New(o.source, resolverOpts...),
		engine:   engine.New(engineOpts...),
		logger:   o.logger,
	}
}

// Register adds a schema contributor after the ones already registered.
// Previously resolved entities keep their cached schemas until Reset.
func (s *Service) Register(c types.Contributor) {
	s.resolver.Register(c)
}

// Get returns the value of the named field for a post.
func (s *Service) Get(ctx context.Context, name string, postID int64) (types.Value, error) {
	return s.value(ctx, "get", types.PostRef(postID), name)
}

// GetAll returns every field value of a post, keyed by field name or, for
// repeatable groups, by group name.
func (s *Service) GetAll(ctx context.Context, postID int64) (*types.Values, error) {
	return s.all(ctx, "get_all", types.PostRef(postID))
}

// GetUserMeta returns the value of the named field for a user.
func (s *Service) GetUserMeta(ctx context.Context, userID int64, name string) (types.Value, error) {
	return s.value(ctx, "get_user_meta", types.UserRef(userID), name)
}

// GetUserMetaAll returns every field value of a user.
func (s *Service) GetUserMetaAll(ctx context.Context, userID int64) (*types.Values, error) {
	return s.all(ctx, "get_user_meta_all", types.UserRef(userID))
}

// Value reads one field of any entity.
func (s *Service) Value(ctx context.Context, ref types.EntityRef, name string) (types.Value, error) {
	return s.value(ctx, "get", ref, name)
}

// All reads every field of any entity.
func (s *Service) All(ctx context.Context, ref types.EntityRef) (*types.Values, error) {
	return s.all(ctx, "get_all", ref)
}

// FieldDefinition returns the definition of name among the schemas that
// apply to target, or nil.
func (s *Service) FieldDefinition(ctx context.Context, target types.Target, name string) (*types.FieldDefinition, error) {
	schemas, err := s.resolver.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	f, _ := engine.FindField(schemas, name)
	if f == nil {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

// Settings returns the schemas that apply to target.
func (s *Service) Settings(ctx context.Context, target types.Target) ([]*types.Schema, error) {
	return s.resolver.Resolve(ctx, target)
}

// SettingsCached reports how the defined schema schemaID was evaluated for
// the entity (kind, id) by earlier resolutions. Pass an empty kind to ask
// whether it applies without an id restriction.
func (s *Service) SettingsCached(schemaID string, kind types.MetaKind, id int64) Lookup {
	return s.resolver.Cached(schemaID, kind, id)
}

// DefinedSettingsCached returns the cached defined schemas for a post type
// or role; ok is false until an entity of that type or role was resolved.
func (s *Service) DefinedSettingsCached(kind types.MetaKind, typeOrRole string) ([]*types.Schema, bool) {
	return s.resolver.DefinedCached(kind, typeOrRole)
}

// Save writes input, a map of field or repeatable group names to values,
// into the entity's metadata. Keys that no applicable schema declares are
// ignored.
func (s *Service) Save(ctx context.Context, ref types.EntityRef, input map[string]any) (err error) {
	defer s.observe("save", time.Now(), &err)

	e, schemas, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%s: %w", ref, types.ErrNotFound)
	}
	return s.engine.Save(ctx, s.store, ref, schemas, input)
}

// SaveRevision copies the post's field values onto its revision. The
// revision's ParentID must be postID.
func (s *Service) SaveRevision(ctx context.Context, postID, revisionID int64) (err error) {
	defer s.observe("save_revision", time.Now(), &err)
	return s.copyForPost(ctx, postID, revisionID, types.PostRef(postID), types.PostRef(revisionID))
}

// RestoreRevision copies a revision's field values back onto the post.
func (s *Service) RestoreRevision(ctx context.Context, postID, revisionID int64) (err error) {
	defer s.observe("restore_revision", time.Now(), &err)
	return s.copyForPost(ctx, postID, revisionID, types.PostRef(revisionID), types.PostRef(postID))
}

// Copy copies every field known to the schemas of schemaOwner from source
// to target.
func (s *Service) Copy(ctx context.Context, schemaOwner, source, target types.EntityRef) (err error) {
	defer s.observe("copy", time.Now(), &err)

	e, schemas, err := s.load(ctx, schemaOwner)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%s: %w", schemaOwner, types.ErrNotFound)
	}
	return s.engine.CopyAll(ctx, s.store, source, target, schemas)
}

// Reset clears the resolver caches.
func (s *Service) Reset() {
	s.resolver.Reset()
}

// copyForPost copies between a post and one of its revisions using the
// post's schemas. The revision must name postID as its parent.
func (s *Service) copyForPost(ctx context.Context, postID, revisionID int64, source, target types.EntityRef) error {
	post := types.PostRef(postID)
	e, schemas, err := s.load(ctx, post)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%s: %w", post, types.ErrNotFound)
	}
	rev, err := s.store.Entity(ctx, types.PostRef(revisionID))
	if err != nil {
		return fmt.Errorf("revision %d: %w", revisionID, err)
	}
	if rev.ParentID != postID {
		return fmt.Errorf("post %d is not the parent of revision %d (parent %d): %w",
			postID, revisionID, rev.ParentID, types.ErrInvalidInput)
	}
	s.logger.Debug("copying revision fields", "post", postID, "source", source.String(), "target", target.String())
	return s.engine.CopyAll(ctx, s.store, source, target, schemas)
}

func (s *Service) value(ctx context.Context, op string, ref types.EntityRef, name string) (v types.Value, err error) {
	defer s.observe(op, time.Now(), &err)

	e, schemas, err := s.load(ctx, ref)
	if err != nil || e == nil {
		return nil, err
	}
	if f, _ := engine.FindField(schemas, name); f == nil {
		return nil, nil
	}
	snap, err := s.engine.ReadSnapshot(ctx, s.store, ref, schemas)
	if err != nil {
		return nil, err
	}
	v, _ = s.engine.GetValue(schemas, snap, name)
	return v, nil
}

func (s *Service) all(ctx context.Context, op string, ref types.EntityRef) (vals *types.Values, err error) {
	defer s.observe(op, time.Now(), &err)

	e, schemas, err := s.load(ctx, ref)
	if err != nil || e == nil {
		return nil, err
	}
	snap, err := s.engine.ReadSnapshot(ctx, s.store, ref, schemas)
	if err != nil {
		return nil, err
	}
	return s.engine.GetAll(schemas, snap), nil
}

// load returns the entity and its schemas. A nil entity with a nil error
// means the entity cannot be resolved; schema resolution is skipped then.
func (s *Service) load(ctx context.Context, ref types.EntityRef) (*types.Entity, []*types.Schema, error) {
	if ref.ID <= 0 {
		return nil, nil, nil
	}
	e, err := s.store.Entity(ctx, ref)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", ref, err)
	}
	schemas, err := s.resolver.Resolve(ctx, e.Target())
	if err != nil {
		return nil, nil, err
	}
	return e, schemas, nil
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.engine.Observer().ObserveOperation(op, time.Since(start), *err)
}
