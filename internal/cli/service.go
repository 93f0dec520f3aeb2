package cli

import (
	"context"
	"errors"
	"strconv"

	"github.com/mesh-intelligence/metafields/internal/memory"
	"github.com/mesh-intelligence/metafields/internal/postgres"
	"github.com/mesh-intelligence/metafields/internal/schemafile"
	"github.com/mesh-intelligence/metafields/pkg/fields"
	"github.com/mesh-intelligence/metafields/pkg/sqlite"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

// openStore opens the configured backend. The returned close function
// releases it.
func (a *app) openStore(ctx context.Context) (types.Store, func() error, error) {
	switch a.cfg.Backend {
	case types.BackendSQLite:
		backend := sqlite.NewBackend(a.logger)
		if err := backend.Attach(a.cfg); err != nil {
			return nil, nil, sysError("attach sqlite: %w", err)
		}
		return backend, backend.Detach, nil
	case types.BackendPostgres:
		store, err := postgres.Open(ctx, a.cfg.DSN)
		if err != nil {
			return nil, nil, sysError("open postgres: %w", err)
		}
		return store, func() error { store.Close(); return nil }, nil
	case types.BackendMemory:
		a.logger.Warn("memory backend keeps nothing between runs")
		return memory.New(), func() error { return nil }, nil
	default:
		return nil, nil, userError("backend %q: %w", a.cfg.Backend, types.ErrBackendUnknown)
	}
}

// newService builds a Service over store with the configured schema files.
func (a *app) newService(store types.MetaStore, opts ...fields.Option) *fields.Service {
	opts = append([]fields.Option{
		fields.WithLogger(a.logger),
		fields.WithSchemaSource(schemafile.NewSource(a.cfg.SchemaFiles...)),
	}, opts...)
	return fields.New(store, opts...)
}

// withService opens the store, runs fn and closes the store again.
func (a *app) withService(ctx context.Context, fn func(svc *fields.Service, store types.Store) error) (err error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil && err == nil {
			err = sysError("close store: %w", cerr)
		}
	}()
	return fn(a.newService(store), store)
}

// parseRef parses the <kind> <id> argument pair.
func parseRef(kindArg, idArg string) (types.EntityRef, error) {
	kind, err := types.ParseMetaKind(kindArg)
	if err != nil {
		return types.EntityRef{}, userError("%w", err)
	}
	id, err := parseID(idArg)
	if err != nil {
		return types.EntityRef{}, err
	}
	return types.EntityRef{Kind: kind, ID: id}, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, userError("id %q: %w", arg, types.ErrInvalidID)
	}
	return id, nil
}

// storeError classifies err from a store or service call.
func storeError(action string, err error) error {
	if isUserFacing(err) {
		return userError("%s: %w", action, err)
	}
	return sysError("%s: %w", action, err)
}

func isUserFacing(err error) bool {
	for _, target := range []error{
		types.ErrNotFound, types.ErrInvalidID, types.ErrInvalidKind,
		types.ErrInvalidKey, types.ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
