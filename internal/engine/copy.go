package engine

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// CopyAll reproduces the field values of source on target for every field
// the schemas declare. Each key on target is replaced, never appended to;
// keys the source lacks are removed from target. The row partition record is
// copied byte for byte, or removed from target when the source has none, so
// row boundaries of repeated multi-value fields survive the copy.
func (e *Engine) CopyAll(ctx context.Context, store types.MetaStore, source, target types.EntityRef, schemas []*types.Schema) error {
	names := fieldNames(schemas)
	e.logger.Debug("copying field values", "source", source.String(), "target", target.String(), "fields", len(names))

	for _, name := range names {
		vals, err := store.Values(ctx, source, name)
		if err != nil {
			return fmt.Errorf("reading %s of %s: %w", name, source, err)
		}
		if err := writeValues(ctx, store, target, name, vals); err != nil {
			return err
		}
	}

	raw, err := store.Structured(ctx, source, types.RepeatMultipleDataKey)
	if err != nil {
		return fmt.Errorf("reading row partition of %s: %w", source, err)
	}
	if raw == nil {
		if err := store.RemoveValues(ctx, target, types.RepeatMultipleDataKey); err != nil {
			return fmt.Errorf("removing row partition of %s: %w", target, err)
		}
		return nil
	}
	if err := store.SetStructured(ctx, target, types.RepeatMultipleDataKey, raw); err != nil {
		return fmt.Errorf("writing row partition of %s: %w", target, err)
	}
	return nil
}
