package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

var _ types.Store = (*Backend)(nil)

// PutEntity creates or replaces an entity descriptor. Existing metadata is
// kept.
func (b *Backend) PutEntity(ctx context.Context, e *types.Entity) error {
	if e == nil || e.Ref.ID <= 0 {
		return types.ErrInvalidID
	}
	if !e.Ref.Kind.Valid() {
		return types.ErrInvalidKind
	}
	roles, err := json.Marshal(nonNil(e.Roles))
	if err != nil {
		return fmt.Errorf("encoding roles: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	_, err = b.db.ExecContext(ctx,
		`INSERT INTO entities (kind, entity_id, entity_type, roles, parent_id) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (kind, entity_id) DO UPDATE SET
		   entity_type = excluded.entity_type, roles = excluded.roles, parent_id = excluded.parent_id`,
		string(e.Ref.Kind), e.Ref.ID, e.Type, string(roles), e.ParentID)
	if err != nil {
		return fmt.Errorf("saving entity %s: %w", e.Ref, err)
	}
	return b.persistEntities()
}

// Entity returns the entity descriptor or ErrNotFound.
func (b *Backend) Entity(ctx context.Context, ref types.EntityRef) (*types.Entity, error) {
	if ref.ID <= 0 {
		return nil, types.ErrNotFound
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	e := &types.Entity{Ref: ref}
	var roles string
	err := b.db.QueryRowContext(ctx,
		"SELECT entity_type, roles, parent_id FROM entities WHERE kind = ? AND entity_id = ?",
		string(ref.Kind), ref.ID,
	).Scan(&e.Type, &roles, &e.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %s: %w", ref, err)
	}
	if e.Roles, err = decodeRoles(roles); err != nil {
		return nil, err
	}
	return e, nil
}

// Values returns the values under key in position order.
func (b *Backend) Values(ctx context.Context, ref types.EntityRef, key string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkEntity(ctx, b.db, ref); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT meta_value FROM meta WHERE kind = ? AND entity_id = ? AND meta_key = ? ORDER BY position, meta_id",
		string(ref.Kind), ref.ID, key)
	if err != nil {
		return nil, fmt.Errorf("querying %s %s: %w", ref, key, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning %s %s: %w", ref, key, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Structured returns the first value under key as bytes, or nil.
func (b *Backend) Structured(ctx context.Context, ref types.EntityRef, key string) ([]byte, error) {
	vals, err := b.Values(ctx, ref, key)
	if err != nil || len(vals) == 0 {
		return nil, err
	}
	return []byte(vals[0]), nil
}

// AddValue appends one value under key.
func (b *Backend) AddValue(ctx context.Context, ref types.EntityRef, key, value string) error {
	if key == "" {
		return types.ErrInvalidKey
	}
	return b.write(ctx, ref, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO meta (meta_id, kind, entity_id, meta_key, meta_value, position)
			 SELECT ?, ?, ?, ?, ?, COALESCE(MAX(position), -1) + 1
			 FROM meta WHERE kind = ? AND entity_id = ? AND meta_key = ?`,
			generateUUID(), string(ref.Kind), ref.ID, key, value,
			string(ref.Kind), ref.ID, key)
		return err
	})
}

// ReplaceValues swaps every value under key for values.
func (b *Backend) ReplaceValues(ctx context.Context, ref types.EntityRef, key string, values []string) error {
	if key == "" {
		return types.ErrInvalidKey
	}
	return b.write(ctx, ref, func(tx *sql.Tx) error {
		if err := deleteKey(ctx, tx, ref, key); err != nil {
			return err
		}
		for i, v := range values {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO meta (meta_id, kind, entity_id, meta_key, meta_value, position) VALUES (?, ?, ?, ?, ?, ?)",
				generateUUID(), string(ref.Kind), ref.ID, key, v, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveValues deletes every value under key.
func (b *Backend) RemoveValues(ctx context.Context, ref types.EntityRef, key string) error {
	return b.write(ctx, ref, func(tx *sql.Tx) error {
		return deleteKey(ctx, tx, ref, key)
	})
}

// SetStructured stores value as the single value under key.
func (b *Backend) SetStructured(ctx context.Context, ref types.EntityRef, key string, value []byte) error {
	return b.ReplaceValues(ctx, ref, key, []string{string(value)})
}

// Keys lists the distinct metadata keys stored for ref, sorted.
func (b *Backend) Keys(ctx context.Context, ref types.EntityRef) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkEntity(ctx, b.db, ref); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx,
		"SELECT DISTINCT meta_key FROM meta WHERE kind = ? AND entity_id = ? ORDER BY meta_key",
		string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("listing keys of %s: %w", ref, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// write runs fn in a transaction against an existing entity, then rewrites
// meta.jsonl.
func (b *Backend) write(ctx context.Context, ref types.EntityRef, fn func(tx *sql.Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.beginChecked(ctx, ref)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return fmt.Errorf("writing meta of %s: %w", ref, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing meta of %s: %w", ref, err)
	}
	return b.persistMeta()
}

func (b *Backend) beginChecked(ctx context.Context, ref types.EntityRef) (*sql.Tx, error) {
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	if err := b.checkEntity(ctx, tx, ref); err != nil {
		tx.Rollback()
		return nil, err
	}
	return tx, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkEntity returns ErrNotFound unless ref exists. The caller must hold b.mu.
func (b *Backend) checkEntity(ctx context.Context, q queryRower, ref types.EntityRef) error {
	if !b.attached {
		return types.ErrStoreDetached
	}
	var one int
	err := q.QueryRowContext(ctx,
		"SELECT 1 FROM entities WHERE kind = ? AND entity_id = ?", string(ref.Kind), ref.ID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", ref, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking entity %s: %w", ref, err)
	}
	return nil
}

func deleteKey(ctx context.Context, tx *sql.Tx, ref types.EntityRef, key string) error {
	_, err := tx.ExecContext(ctx,
		"DELETE FROM meta WHERE kind = ? AND entity_id = ? AND meta_key = ?",
		string(ref.Kind), ref.ID, key)
	return err
}

func decodeRoles(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var roles []string
	if err := json.Unmarshal([]byte(s), &roles); err != nil {
		return nil, fmt.Errorf("decoding roles: %w", err)
	}
	if len(roles) == 0 {
		return nil, nil
	}
	return roles, nil
}
