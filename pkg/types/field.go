package types

// FieldType tags what kind of input a field represents. The set is open:
// unknown types are accepted and treated as single-value fields.
type FieldType string

// Built-in field types.
const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeWysiwyg     FieldType = "wysiwyg"
	FieldTypeCheck       FieldType = "check"
	FieldTypeRadio       FieldType = "radio"
	FieldTypeSelect      FieldType = "select"
	FieldTypeRelation    FieldType = "relation"
	FieldTypeTaxonomy    FieldType = "taxonomy"
	FieldTypeImage       FieldType = "image"
	FieldTypeFile        FieldType = "file"
	FieldTypeDatepicker  FieldType = "datepicker"
	FieldTypeColorpicker FieldType = "colorpicker"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeMessage     FieldType = "message"
)

// multiValueTypes is the set of field types stored as several raw values
// under one key.
var multiValueTypes = map[FieldType]bool{
	FieldTypeCheck:    true,
	FieldTypeRelation: true,
	FieldTypeTaxonomy: true,
}

// AllowsMultipleValues reports whether fields of this type hold a sequence of
// selections rather than a single scalar.
func (t FieldType) AllowsMultipleValues() bool {
	return multiValueTypes[t]
}

// FieldDefinition describes one custom field. Name is unique within a Schema.
// Choices is only meaningful for choice types (check, radio, select).
type FieldDefinition struct {
	Name        string    `json:"name" yaml:"name"`
	Label       string    `json:"label,omitempty" yaml:"label,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Choices     []string  `json:"choices,omitempty" yaml:"choices,omitempty"`
	Default     string    `json:"default,omitempty" yaml:"default,omitempty"`
	Instruction string    `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// AllowsMultipleValues reports whether the field's type is multi-valued.
func (f *FieldDefinition) AllowsMultipleValues() bool {
	return f.Type.AllowsMultipleValues()
}

// Empty returns the value the field resolves to when nothing is stored:
// "" for single-value fields and an empty (non-nil) slice for multi-value
// fields.
func (f *FieldDefinition) Empty() Value {
	if f.AllowsMultipleValues() {
		return []string{}
	}
	return ""
}
