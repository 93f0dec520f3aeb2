// This file implements the read path: single-field lookups and the full
// value tree of an entity.
package engine

import (
	"github.com/mesh-intelligence/metafields/pkg/types"
)

// GetValue resolves one field. ok is false when no schema declares name,
// which callers must keep distinct from a known field with an empty value.
//
// Outside repeatable groups single-value fields yield the first raw value
// or "", and multi-value fields the full raw sequence or []. Inside a
// repeatable group a single-value field yields one entry per stored value;
// a multi-value field is split into rows by the row partition, and a field
// without a partition entry yields no rows at all.
func (e *Engine) GetValue(schemas []*types.Schema, snap *Snapshot, name string) (types.Value, bool) {
	f, g := findField(schemas, name)
	if f == nil {
		return nil, false
	}
	raw := snap.Values(name)
	if !g.Repeatable {
		return flatValue(f, raw), true
	}
	if !f.AllowsMultipleValues() {
		return cloneStrings(raw), true
	}
	return e.splitRows(snap, name, raw), true
}

// GetAll composes the full value tree. Non-repeatable groups contribute one
// key per field. Repeatable groups contribute one key holding their rows;
// the row count is the largest row count among the group's fields and never
// less than one, so an entity without data still shows one empty row.
func (e *Engine) GetAll(schemas []*types.Schema, snap *Snapshot) *types.Values {
	out := types.NewValues()
	for _, s := range schemas {
		if s == nil {
			continue
		}
		for _, g := range s.Groups {
			if !g.Repeatable {
				for i := range g.Fields {
					f := &g.Fields[i]
					out.Set(f.Name, flatValue(f, snap.Values(f.Name)))
				}
				continue
			}
			out.Set(g.Name, e.groupRows(g, snap))
		}
	}
	return out
}

func (e *Engine) groupRows(g *types.Group, snap *Snapshot) []types.Row {
	single := make(map[string][]string)
	multi := make(map[string][][]string)
	count := 1
	for i := range g.Fields {
		f := &g.Fields[i]
		raw := snap.Values(f.Name)
		if f.AllowsMultipleValues() {
			rows := e.splitRows(snap, f.Name, raw)
			multi[f.Name] = rows
			count = max(count, len(rows))
			continue
		}
		single[f.Name] = raw
		count = max(count, len(raw))
	}

	rows := make([]types.Row, count)
	for r := range rows {
		row := make(types.Row, len(g.Fields))
		for i := range g.Fields {
			f := &g.Fields[i]
			if f.AllowsMultipleValues() {
				if vals := multi[f.Name]; r < len(vals) {
					row[f.Name] = vals[r]
				} else {
					row[f.Name] = f.Empty()
				}
				continue
			}
			if vals := single[f.Name]; r < len(vals) {
				row[f.Name] = vals[r]
			} else {
				row[f.Name] = f.Empty()
			}
		}
		rows[r] = row
	}
	return rows
}

func (e *Engine) splitRows(snap *Snapshot, name string, raw []string) [][]string {
	p := snap.Partition()
	rows, ok := p.Split(name, raw)
	if !ok {
		if len(raw) > 0 {
			e.logger.Debug("repeated multi-value field has values but no row partition", "field", name, "values", len(raw))
			e.observer.ObservePartitionMismatch(name)
		}
		return [][]string{}
	}
	if diff := p.Unaccounted(name, len(raw)); diff != 0 {
		e.logger.Debug("row partition does not match stored values", "field", name, "unaccounted", diff)
		e.observer.ObservePartitionMismatch(name)
	}
	return rows
}

func flatValue(f *types.FieldDefinition, raw []string) types.Value {
	if len(raw) == 0 {
		return f.Empty()
	}
	if f.AllowsMultipleValues() {
		return cloneStrings(raw)
	}
	return raw[0]
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
