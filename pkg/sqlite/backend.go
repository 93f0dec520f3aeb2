// Package sqlite provides the public factory for the SQLite metadata store.
// Implementation details stay in internal/sqlite.
package sqlite

import (
	"context"
	"log/slog"

	"github.com/mesh-intelligence/metafields/internal/sqlite"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Backend is a Store that lives in a data directory between Attach and
// Detach.
type Backend interface {
	types.Store

	// Attach opens the store on config.DataDir.
	Attach(config types.Config) error

	// Detach closes the store. Calling it twice is harmless.
	Detach() error

	// Keys lists the distinct metadata keys of an entity.
	Keys(ctx context.Context, ref types.EntityRef) ([]string, error)
}

// NewBackend creates a detached SQLite backend logging to logger (nil means
// slog.Default()).
//
// Example:
//
//	backend := sqlite.NewBackend(nil)
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".metafields-db",
//	})
//	defer backend.Detach()
//	svc := fields.New(backend, fields.WithSchemaSource(src))
func NewBackend(logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return sqlite.NewBackend(sqlite.WithLogger(logger))
}
