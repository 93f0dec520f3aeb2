// Package schemafile loads schema definitions from YAML files.
//
// A file holds a top-level "schemas" list:
//
//	schemas:
//	  - id: id-1
//	    title: Register Test
//	    applies_to:
//	      entity_types: [post]
//	    groups:
//	      - name: group-name-3
//	        repeatable: true
//	        fields:
//	          - {name: checkbox3, type: check, choices: [1, 2, 3]}
package schemafile

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

type document struct {
	Schemas []schemaDoc `yaml:"schemas"`
}

type schemaDoc struct {
	ID        string              `yaml:"id"`
	Title     string              `yaml:"title"`
	AppliesTo types.Applicability `yaml:"applies_to"`
	Groups    []groupDoc          `yaml:"groups"`
}

type groupDoc struct {
	Name       string     `yaml:"name"`
	Repeatable bool       `yaml:"repeatable"`
	Fields     []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name        string  `yaml:"name"`
	Label       string  `yaml:"label"`
	Type        string  `yaml:"type"`
	Choices     choices `yaml:"choices"`
	Default     string  `yaml:"default"`
	Instruction string  `yaml:"instruction"`
	Notes       string  `yaml:"notes"`
}

// choices accepts a YAML sequence of scalars or a newline separated block
// string, keeping numeric choices in their written form.
type choices []string

func (c *choices) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: choice must be a scalar", item.Line)
			}
			out = append(out, item.Value)
		}
		*c = out
	case yaml.ScalarNode:
		var out []string
		for _, line := range strings.Split(n.Value, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		*c = out
	default:
		return fmt.Errorf("line %d: choices must be a list or a string", n.Line)
	}
	return nil
}

// Parse decodes and validates the schemas in r.
func Parse(r io.Reader) ([]*types.Schema, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding schemas: %w", err)
	}

	out := make([]*types.Schema, 0, len(doc.Schemas))
	for i, sd := range doc.Schemas {
		s := sd.schema()
		if s.ID == "" {
			s.ID = strconv.Itoa(i + 1)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (sd schemaDoc) schema() *types.Schema {
	s := types.NewSchema(sd.ID, sd.Title)
	s.Applicability = sd.AppliesTo
	for _, gd := range sd.Groups {
		fields := make([]types.FieldDefinition, 0, len(gd.Fields))
		for _, fd := range gd.Fields {
			fields = append(fields, types.FieldDefinition{
				Name:        fd.Name,
				Label:       fd.Label,
				Type:        types.FieldType(fd.Type),
				Choices:     []string(fd.Choices),
				Default:     fd.Default,
				Instruction: fd.Instruction,
				Notes:       fd.Notes,
			})
		}
		s.AddGroup(gd.Name, gd.Repeatable, fields...)
	}
	return s
}

// Load reads every file in order. Schema ids must be unique across files.
func Load(paths ...string) ([]*types.Schema, error) {
	var all []*types.Schema
	seen := make(map[string]string)
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening schema file: %w", err)
		}
		schemas, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		for _, s := range schemas {
			if prev, ok := seen[s.ID]; ok {
				return nil, fmt.Errorf("%s: schema %s already defined in %s: %w", p, s.ID, prev, types.ErrDuplicateName)
			}
			seen[s.ID] = p
		}
		all = append(all, schemas...)
	}
	return all, nil
}

// Source is a types.SchemaSource backed by YAML files. Files are read on
// first use and kept until Reload.
type Source struct {
	paths []string

	mu      sync.Mutex
	schemas []*types.Schema
	loaded  bool
}

// NewSource creates a Source over paths.
func NewSource(paths ...string) *Source {
	return &Source{paths: paths}
}

// Schemas implements types.SchemaSource.
func (s *Source) Schemas(ctx context.Context) ([]*types.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.schemas, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	schemas, err := Load(s.paths...)
	if err != nil {
		return nil, err
	}
	s.schemas, s.loaded = schemas, true
	return schemas, nil
}

// Reload discards the loaded schemas so the next call reads the files again.
func (s *Source) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas, s.loaded = nil, false
}
