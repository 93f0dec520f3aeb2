// Package engine reshapes flat, multi-valued entity metadata into the nested
// value structure a schema describes, flattens edited values back into the
// store, and copies a full field set from one entity to another.
package engine

import (
	"log/slog"
	"time"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Observer receives engine events. internal/metrics provides the Prometheus
// implementation.
type Observer interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
	ObservePartitionMismatch(field string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, time.Duration, error) {}
func (nopObserver) ObservePartitionMismatch(string)               {}

// Engine is stateless apart from its logger and observer; one instance can
// serve any number of entities.
type Engine struct {
	logger   *slog.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Observer returns the configured observer.
func (e *Engine) Observer() Observer { return e.observer }

// findField looks a field up across schemas. Schemas registered later win;
// within one schema the first group declaring the name wins.
func findField(schemas []*types.Schema, name string) (*types.FieldDefinition, *types.Group) {
	for i := len(schemas) - 1; i >= 0; i-- {
		if schemas[i] == nil {
			continue
		}
		if f, g := schemas[i].FindField(name); f != nil {
			return f, g
		}
	}
	return nil, nil
}

// FindField exposes the cross-schema lookup used by GetValue.
func FindField(schemas []*types.Schema, name string) (*types.FieldDefinition, *types.Group) {
	return findField(schemas, name)
}

// fieldNames returns every field name declared by schemas, in order.
func fieldNames(schemas []*types.Schema) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range schemas {
		if s == nil {
			continue
		}
		for _, n := range s.AllFieldNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
