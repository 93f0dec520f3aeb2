// Package postgres implements types.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

var _ types.Store = (*Store)(nil)

// DBTX is satisfied by a pool, a connection or a transaction.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
    kind TEXT NOT NULL,
    entity_id BIGINT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT '',
    roles TEXT[] NOT NULL DEFAULT '{}',
    parent_id BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (kind, entity_id)
);
CREATE TABLE IF NOT EXISTS meta (
    meta_id UUID PRIMARY KEY,
    kind TEXT NOT NULL,
    entity_id BIGINT NOT NULL,
    meta_key TEXT NOT NULL,
    meta_value TEXT NOT NULL,
    position INTEGER NOT NULL,
    FOREIGN KEY (kind, entity_id) REFERENCES entities(kind, entity_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_meta_entity_key ON meta(kind, entity_id, meta_key, position);
`

// Store implements types.Store using PostgreSQL.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New wraps an existing handle. The caller owns its lifetime.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects to dsn, verifies the connection and creates the tables.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool opened by Open.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return handlePostgresError("migrate", err)
	}
	return nil
}

// PutEntity creates or replaces an entity descriptor.
func (s *Store) PutEntity(ctx context.Context, e *types.Entity) error {
	if e == nil || e.Ref.ID <= 0 {
		return types.ErrInvalidID
	}
	if !e.Ref.Kind.Valid() {
		return types.ErrInvalidKind
	}
	roles := e.Roles
	if roles == nil {
		roles = []string{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO entities (kind, entity_id, entity_type, roles, parent_id) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (kind, entity_id) DO UPDATE SET
		   entity_type = EXCLUDED.entity_type, roles = EXCLUDED.roles, parent_id = EXCLUDED.parent_id`,
		string(e.Ref.Kind), e.Ref.ID, e.Type, roles, e.ParentID)
	if err != nil {
		return handlePostgresError("put entity", err)
	}
	return nil
}

// Entity returns the entity descriptor or ErrNotFound.
func (s *Store) Entity(ctx context.Context, ref types.EntityRef) (*types.Entity, error) {
	if ref.ID <= 0 {
		return nil, types.ErrNotFound
	}
	e := &types.Entity{Ref: ref}
	err := s.db.QueryRow(ctx,
		"SELECT entity_type, roles, parent_id FROM entities WHERE kind = $1 AND entity_id = $2",
		string(ref.Kind), ref.ID,
	).Scan(&e.Type, &e.Roles, &e.ParentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, handlePostgresError("get entity", err)
	}
	if len(e.Roles) == 0 {
		e.Roles = nil
	}
	return e, nil
}

// Values returns the values under key in position order.
func (s *Store) Values(ctx context.Context, ref types.EntityRef, key string) ([]string, error) {
	if err := checkEntity(ctx, s.db, ref); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		"SELECT meta_value FROM meta WHERE kind = $1 AND entity_id = $2 AND meta_key = $3 ORDER BY position, meta_id",
		string(ref.Kind), ref.ID, key)
	if err != nil {
		return nil, handlePostgresError("get values", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, handlePostgresError("get values", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// Structured returns the first value under key as bytes, or nil.
func (s *Store) Structured(ctx context.Context, ref types.EntityRef, key string) ([]byte, error) {
	vals, err := s.Values(ctx, ref, key)
	if err != nil || len(vals) == 0 {
		return nil, err
	}
	return []byte(vals[0]), nil
}

// AddValue appends one value under key.
func (s *Store) AddValue(ctx context.Context, ref types.EntityRef, key, value string) error {
	if key == "" {
		return types.ErrInvalidKey
	}
	return s.write(ctx, ref, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO meta (meta_id, kind, entity_id, meta_key, meta_value, position)
			 SELECT $1::uuid, $2::text, $3::bigint, $4::text, $5::text, COALESCE(MAX(position), -1) + 1
			 FROM meta WHERE kind = $2::text AND entity_id = $3::bigint AND meta_key = $4::text`,
			newID(), string(ref.Kind), ref.ID, key, value)
		return err
	})
}

// ReplaceValues swaps every value under key for values.
func (s *Store) ReplaceValues(ctx context.Context, ref types.EntityRef, key string, values []string) error {
	if key == "" {
		return types.ErrInvalidKey
	}
	return s.write(ctx, ref, func(tx pgx.Tx) error {
		if err := deleteKey(ctx, tx, ref, key); err != nil {
			return err
		}
		if len(values) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, v := range values {
			batch.Queue(
				"INSERT INTO meta (meta_id, kind, entity_id, meta_key, meta_value, position) VALUES ($1, $2, $3, $4, $5, $6)",
				newID(), string(ref.Kind), ref.ID, key, v, i)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// RemoveValues deletes every value under key.
func (s *Store) RemoveValues(ctx context.Context, ref types.EntityRef, key string) error {
	return s.write(ctx, ref, func(tx pgx.Tx) error {
		return deleteKey(ctx, tx, ref, key)
	})
}

// SetStructured stores value as the single value under key.
func (s *Store) SetStructured(ctx context.Context, ref types.EntityRef, key string, value []byte) error {
	return s.ReplaceValues(ctx, ref, key, []string{string(value)})
}

func (s *Store) write(ctx context.Context, ref types.EntityRef, fn func(tx pgx.Tx) error) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		// Lock the entity row so concurrent appends compute distinct positions.
		var one int
		err := tx.QueryRow(ctx,
			"SELECT 1 FROM entities WHERE kind = $1 AND entity_id = $2 FOR UPDATE",
			string(ref.Kind), ref.ID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", ref, types.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fn(tx)
	})
	if errors.Is(err, types.ErrNotFound) {
		return err
	}
	if err != nil {
		return handlePostgresError("write meta", err)
	}
	return nil
}

func checkEntity(ctx context.Context, db DBTX, ref types.EntityRef) error {
	var one int
	err := db.QueryRow(ctx,
		"SELECT 1 FROM entities WHERE kind = $1 AND entity_id = $2",
		string(ref.Kind), ref.ID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", ref, types.ErrNotFound)
	}
	if err != nil {
		return handlePostgresError("check entity", err)
	}
	return nil
}

func deleteKey(ctx context.Context, tx pgx.Tx, ref types.EntityRef, key string) error {
	_, err := tx.Exec(ctx,
		"DELETE FROM meta WHERE kind = $1 AND entity_id = $2 AND meta_key = $3",
		string(ref.Kind), ref.ID, key)
	return err
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// handlePostgresError maps driver errors onto readable messages.
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: referenced entity: %w", operation, types.ErrNotFound)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist, run migrations: %w", operation, err)
		default:
			return fmt.Errorf("%s: %s (code %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
