package types

import (
	"fmt"
	"slices"
)

// Group is a named, ordered set of field definitions. A repeatable group
// contributes a sequence of rows instead of top-level values.
type Group struct {
	Name       string            `json:"name" yaml:"name"`
	Repeatable bool              `json:"repeatable" yaml:"repeatable"`
	Fields     []FieldDefinition `json:"fields" yaml:"fields"`
}

// FindField returns the field with the given name, or nil.
func (g *Group) FindField(name string) *FieldDefinition {
	for i := range g.Fields {
		if g.Fields[i].Name == name {
			return &g.Fields[i]
		}
	}
	return nil
}

// Applicability decides which entities a schema targets. Empty slices mean
// "no restriction" on that axis. EntityTypes are matched for posts and
// Roles for users; a schema restricted on neither applies everywhere.
type Applicability struct {
	EntityTypes []string `json:"entity_types,omitempty" yaml:"entity_types,omitempty"`
	EntityIDs   []int64  `json:"entity_ids,omitempty" yaml:"entity_ids,omitempty"`
	Roles       []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Targets reports whether the schema is aimed at typeOrRole for entities of
// the given kind, ignoring the id allow-list.
func (a Applicability) Targets(kind MetaKind, typeOrRole string) bool {
	var own, other []string
	switch kind {
	case MetaKindUser:
		own, other = a.Roles, a.EntityTypes
	default:
		own, other = a.EntityTypes, a.Roles
	}
	if len(own) == 0 {
		// Restricted only on the other axis: it belongs to the other kind.
		return len(other) == 0
	}
	return slices.Contains(own, typeOrRole)
}

// AllowsID reports whether id passes the explicit allow-list.
func (a Applicability) AllowsID(id int64) bool {
	if len(a.EntityIDs) == 0 {
		return true
	}
	return slices.Contains(a.EntityIDs, id)
}

// Schema is an ordered set of groups plus the rules deciding where it
// applies. ID is unique among the schemas a source defines.
type Schema struct {
	ID            string        `json:"id" yaml:"id"`
	Title         string        `json:"title" yaml:"title"`
	Groups        []*Group      `json:"groups" yaml:"groups"`
	Applicability Applicability `json:"applies_to" yaml:"applies_to"`
}

// NewSchema creates an empty schema.
func NewSchema(id, title string) *Schema {
	return &Schema{ID: id, Title: title}
}

// AddGroup appends a group built from fields and returns it.
func (s *Schema) AddGroup(name string, repeatable bool, fields ...FieldDefinition) *Group {
	g := &Group{Name: name, Repeatable: repeatable, Fields: fields}
	s.Groups = append(s.Groups, g)
	return g
}

// FindGroup returns the group with the given name, or nil.
func (s *Schema) FindGroup(name string) *Group {
	for _, g := range s.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// FindField locates a field by name across groups; the first group that
// declares it wins. Returns nil, nil when no group declares it.
func (s *Schema) FindField(name string) (*FieldDefinition, *Group) {
	for _, g := range s.Groups {
		if f := g.FindField(name); f != nil {
			return f, g
		}
	}
	return nil, nil
}

// AllFieldNames returns every field name in schema order, without duplicates.
func (s *Schema) AllFieldNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, g := range s.Groups {
		for _, f := range g.Fields {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks structural invariants: non-empty names, unique group names
// and field names unique across all groups.
func (s *Schema) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("schema %q: %w", s.Title, ErrInvalidName)
	}
	groups := make(map[string]bool)
	fields := make(map[string]bool)
	for _, g := range s.Groups {
		if g.Name == "" {
			return fmt.Errorf("schema %s: group: %w", s.ID, ErrInvalidName)
		}
		if groups[g.Name] {
			return fmt.Errorf("schema %s: group %s: %w", s.ID, g.Name, ErrDuplicateName)
		}
		groups[g.Name] = true
		for _, f := range g.Fields {
			if f.Name == "" {
				return fmt.Errorf("schema %s: group %s: field: %w", s.ID, g.Name, ErrInvalidName)
			}
			if fields[f.Name] {
				return fmt.Errorf("schema %s: field %s: %w", s.ID, f.Name, ErrDuplicateName)
			}
			fields[f.Name] = true
		}
	}
	return nil
}
