package engine

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Snapshot is the raw metadata of one entity restricted to the keys a set of
// schemas knows about, plus the decoded row partition record.
type Snapshot struct {
	values    map[string][]string
	partition RowPartition
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string][]string)}
}

// Set records the raw values for key.
func (s *Snapshot) Set(key string, values ...string) *Snapshot {
	s.values[key] = values
	return s
}

// SetPartition records the row partition.
func (s *Snapshot) SetPartition(p RowPartition) *Snapshot {
	s.partition = p
	return s
}

// Values returns the raw values for key.
func (s *Snapshot) Values(key string) []string {
	return s.values[key]
}

// Partition returns the row partition; nil when the entity has none.
func (s *Snapshot) Partition() RowPartition {
	return s.partition
}

// ReadSnapshot loads, fresh from the store, the values of every field the
// schemas declare and the row partition record. An unreadable partition
// record is logged and treated as absent.
func (e *Engine) ReadSnapshot(ctx context.Context, store types.MetaStore, ref types.EntityRef, schemas []*types.Schema) (*Snapshot, error) {
	snap := NewSnapshot()
	for _, name := range fieldNames(schemas) {
		vals, err := store.Values(ctx, ref, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s of %s: %w", name, ref, err)
		}
		snap.Set(name, vals...)
	}

	raw, err := store.Structured(ctx, ref, types.RepeatMultipleDataKey)
	if err != nil {
		return nil, fmt.Errorf("reading row partition of %s: %w", ref, err)
	}
	p, err := DecodeRowPartition(raw)
	if err != nil {
		e.logger.Warn("ignoring unreadable row partition", "entity", ref.String(), "error", err)
		p = nil
	}
	snap.SetPartition(p)
	return snap, nil
}
