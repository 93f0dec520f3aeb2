// This file implements the write path: flattening nested values into the
// flat store and maintaining the row partition record.
package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Save flattens input into the store for ref. Input keys are field names for
// non-repeatable groups and group names for repeatable groups (a slice of
// rows). Only keys present in input are rewritten. For repeated multi-value
// fields the per-row counts are merged into the row partition record; a row
// with no selection is recorded as size zero so row positions survive.
func (e *Engine) Save(ctx context.Context, store types.MetaStore, ref types.EntityRef, schemas []*types.Schema, input map[string]any) error {
	e.logger.Debug("saving field values", "entity", ref.String(), "keys", len(input))

	raw, err := store.Structured(ctx, ref, types.RepeatMultipleDataKey)
	if err != nil {
		return fmt.Errorf("reading row partition of %s: %w", ref, err)
	}
	partition, err := DecodeRowPartition(raw)
	if err != nil {
		e.logger.Warn("replacing unreadable row partition", "entity", ref.String(), "error", err)
		partition = nil
	}
	if partition == nil {
		partition = make(RowPartition)
	}
	touched := false

	for _, s := range schemas {
		if s == nil {
			continue
		}
		for _, g := range s.Groups {
			if !g.Repeatable {
				for i := range g.Fields {
					f := &g.Fields[i]
					v, ok := input[f.Name]
					if !ok {
						continue
					}
					vals, err := toStrings(v)
					if err != nil {
						return fmt.Errorf("field %s: %w", f.Name, err)
					}
					if !f.AllowsMultipleValues() && len(vals) > 1 {
						vals = vals[:1]
					}
					if err := writeValues(ctx, store, ref, f.Name, vals); err != nil {
						return err
					}
				}
				continue
			}

			v, ok := input[g.Name]
			if !ok {
				continue
			}
			rows, err := toRows(v)
			if err != nil {
				return fmt.Errorf("group %s: %w", g.Name, err)
			}
			for i := range g.Fields {
				f := &g.Fields[i]
				flat, sizes, err := flattenRows(f, rows)
				if err != nil {
					return fmt.Errorf("group %s: field %s: %w", g.Name, f.Name, err)
				}
				if err := writeValues(ctx, store, ref, f.Name, flat); err != nil {
					return err
				}
				if !f.AllowsMultipleValues() {
					continue
				}
				touched = true
				if len(rows) == 0 {
					delete(partition, f.Name)
				} else {
					partition[f.Name] = sizes
				}
			}
		}
	}

	if !touched {
		return nil
	}
	if len(partition) == 0 {
		if err := store.RemoveValues(ctx, ref, types.RepeatMultipleDataKey); err != nil {
			return fmt.Errorf("removing row partition of %s: %w", ref, err)
		}
		return nil
	}
	encoded, err := partition.Encode()
	if err != nil {
		return fmt.Errorf("encoding row partition: %w", err)
	}
	if err := store.SetStructured(ctx, ref, types.RepeatMultipleDataKey, encoded); err != nil {
		return fmt.Errorf("writing row partition of %s: %w", ref, err)
	}
	return nil
}

// flattenRows collects one field across rows. Single-value fields
// contribute exactly one value per row ("" when the row has none) so the
// value count stays equal to the row count.
func flattenRows(f *types.FieldDefinition, rows []types.Row) (flat []string, sizes []int, err error) {
	for _, row := range rows {
		vals, err := toStrings(row[f.Name])
		if err != nil {
			return nil, nil, err
		}
		if f.AllowsMultipleValues() {
			flat = append(flat, vals...)
			sizes = append(sizes, len(vals))
			continue
		}
		if len(vals) == 0 {
			flat = append(flat, "")
		} else {
			flat = append(flat, vals[0])
		}
	}
	return flat, sizes, nil
}

func writeValues(ctx context.Context, store types.MetaStore, ref types.EntityRef, key string, vals []string) error {
	if len(vals) == 0 {
		if err := store.RemoveValues(ctx, ref, key); err != nil {
			return fmt.Errorf("removing %s of %s: %w", key, ref, err)
		}
		return nil
	}
	if err := store.ReplaceValues(ctx, ref, key, vals); err != nil {
		return fmt.Errorf("writing %s of %s: %w", key, ref, err)
	}
	return nil
}

// toStrings normalizes an input value into raw string values.
func toStrings(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return cloneStrings(x), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		if x {
			return "1", nil
		}
		return "", nil
	default:
		return "", fmt.Errorf("value of type %T: %w", v, types.ErrInvalidInput)
	}
}

// toRows normalizes the value of a repeatable group into rows.
func toRows(v any) ([]types.Row, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []types.Row:
		return x, nil
	case []map[string]any:
		rows := make([]types.Row, len(x))
		for i, r := range x {
			rows[i] = types.Row(r)
		}
		return rows, nil
	case []any:
		rows := make([]types.Row, 0, len(x))
		for _, item := range x {
			switch r := item.(type) {
			case types.Row:
				rows = append(rows, r)
			case map[string]any:
				rows = append(rows, types.Row(r))
			default:
				return nil, fmt.Errorf("row of type %T: %w", item, types.ErrInvalidInput)
			}
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("rows of type %T: %w", v, types.ErrInvalidInput)
	}
}
