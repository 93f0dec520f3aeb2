// Package memory implements types.Store with in-process maps. It backs the
// "memory" backend and the engine tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

var _ types.Store = (*Store)(nil)

// metaRow is one stored value. IDs mirror the meta_id of the SQL backends.
type metaRow struct {
	id    string
	value string
}

// Store implements types.Store using in-memory storage.
type Store struct {
	mu       sync.RWMutex
	entities map[types.EntityRef]*types.Entity
	meta     map[types.EntityRef]map[string][]metaRow
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entities: make(map[types.EntityRef]*types.Entity),
		meta:     make(map[types.EntityRef]map[string][]metaRow),
	}
}

// PutEntity creates or replaces an entity descriptor.
func (s *Store) PutEntity(ctx context.Context, e *types.Entity) error {
	if e == nil || e.Ref.ID <= 0 {
		return types.ErrInvalidID
	}
	if !e.Ref.Kind.Valid() {
		return types.ErrInvalidKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external modifications.
	cp := *e
	cp.Roles = append([]string(nil), e.Roles...)
	s.entities[e.Ref] = &cp
	if _, ok := s.meta[e.Ref]; !ok {
		s.meta[e.Ref] = make(map[string][]metaRow)
	}
	return nil
}

// Entity returns the entity descriptor or ErrNotFound.
func (s *Store) Entity(ctx context.Context, ref types.EntityRef) (*types.Entity, error) {
	if ref.ID <= 0 {
		return nil, types.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[ref]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *e
	cp.Roles = append([]string(nil), e.Roles...)
	return &cp, nil
}

// Values returns the values under key in insertion order.
func (s *Store) Values(ctx context.Context, ref types.EntityRef, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keysLocked(ref)
	if err != nil {
		return nil, err
	}
	rows := keys[key]
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.value
	}
	return out, nil
}

// Structured returns the first value under key as bytes, or nil.
func (s *Store) Structured(ctx context.Context, ref types.EntityRef, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keysLocked(ref)
	if err != nil {
		return nil, err
	}
	rows := keys[key]
	if len(rows) == 0 {
		return nil, nil
	}
	return []byte(rows[0].value), nil
}

// AddValue appends one value under key.
func (s *Store) AddValue(ctx context.Context, ref types.EntityRef, key, value string) error {
	if key == "" {
		return types.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.keysLocked(ref)
	if err != nil {
		return err
	}
	keys[key] = append(keys[key], metaRow{id: newID(), value: value})
	return nil
}

// ReplaceValues swaps every value under key for values.
func (s *Store) ReplaceValues(ctx context.Context, ref types.EntityRef, key string, values []string) error {
	if key == "" {
		return types.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.keysLocked(ref)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		delete(keys, key)
		return nil
	}
	rows := make([]metaRow, len(values))
	for i, v := range values {
		rows[i] = metaRow{id: newID(), value: v}
	}
	keys[key] = rows
	return nil
}

// RemoveValues deletes every value under key.
func (s *Store) RemoveValues(ctx context.Context, ref types.EntityRef, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.keysLocked(ref)
	if err != nil {
		return err
	}
	delete(keys, key)
	return nil
}

// SetStructured stores value as the single value under key.
func (s *Store) SetStructured(ctx context.Context, ref types.EntityRef, key string, value []byte) error {
	return s.ReplaceValues(ctx, ref, key, []string{string(value)})
}

// Keys lists the metadata keys stored for ref, unordered.
func (s *Store) Keys(ctx context.Context, ref types.EntityRef) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keysLocked(ref)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out, nil
}

// keysLocked returns the key map of ref. The caller must hold s.mu.
func (s *Store) keysLocked(ref types.EntityRef) (map[string][]metaRow, error) {
	keys, ok := s.meta[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, types.ErrNotFound)
	}
	return keys, nil
}

// newID generates a UUID v7 for meta rows.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
