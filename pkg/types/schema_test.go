package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() *Schema {
	s := NewSchema("id-1", "Register Test")
	s.AddGroup("group-name-1", false, FieldDefinition{Name: "text", Label: "text field", Type: FieldTypeText})
	s.AddGroup("group-name-2", false, FieldDefinition{Name: "checkbox", Type: FieldTypeCheck, Choices: []string{"1", "2", "3"}})
	s.AddGroup("group-name-3", true,
		FieldDefinition{Name: "text3", Type: FieldTypeText},
		FieldDefinition{Name: "checkbox3", Type: FieldTypeCheck, Choices: []string{"1", "2", "3"}},
	)
	return s
}

func TestSchemaStructuralQueries(t *testing.T) {
	s := sampleSchema()

	t.Run("FindGroup returns the named group", func(t *testing.T) {
		g := s.FindGroup("group-name-3")
		require.NotNil(t, g)
		assert.True(t, g.Repeatable)
		assert.Nil(t, s.FindGroup("missing"))
	})

	t.Run("FindField reports the owning group", func(t *testing.T) {
		f, g := s.FindField("checkbox3")
		require.NotNil(t, f)
		assert.Equal(t, "group-name-3", g.Name)
		assert.True(t, f.AllowsMultipleValues())

		f, g = s.FindField("not_exist")
		assert.Nil(t, f)
		assert.Nil(t, g)
	})

	t.Run("AllFieldNames keeps schema order", func(t *testing.T) {
		assert.Equal(t, []string{"text", "checkbox", "text3", "checkbox3"}, s.AllFieldNames())
	})

	t.Run("Empty depends on multiplicity", func(t *testing.T) {
		f, _ := s.FindField("text")
		assert.Equal(t, "", f.Empty())
		f, _ = s.FindField("checkbox")
		assert.Equal(t, []string{}, f.Empty())
	})
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Schema
		wantErr error
	}{
		{
			name:  "valid schema",
			build: sampleSchema,
		},
		{
			name:    "missing id",
			build:   func() *Schema { return NewSchema("", "untitled") },
			wantErr: ErrInvalidName,
		},
		{
			name: "duplicate group name",
			build: func() *Schema {
				s := NewSchema("s", "")
				s.AddGroup("g", false)
				s.AddGroup("g", true)
				return s
			},
			wantErr: ErrDuplicateName,
		},
		{
			name: "field name reused across groups",
			build: func() *Schema {
				s := NewSchema("s", "")
				s.AddGroup("a", false, FieldDefinition{Name: "x", Type: FieldTypeText})
				s.AddGroup("b", true, FieldDefinition{Name: "x", Type: FieldTypeText})
				return s
			},
			wantErr: ErrDuplicateName,
		},
		{
			name: "empty field name",
			build: func() *Schema {
				s := NewSchema("s", "")
				s.AddGroup("a", false, FieldDefinition{Type: FieldTypeText})
				return s
			},
			wantErr: ErrInvalidName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplicability(t *testing.T) {
	tests := []struct {
		name       string
		a          Applicability
		kind       MetaKind
		typeOrRole string
		id         int64
		targets    bool
		allowsID   bool
	}{
		{"global applies to posts", Applicability{}, MetaKindPost, "page", 7, true, true},
		{"global applies to users", Applicability{}, MetaKindUser, "editor", 7, true, true},
		{"type match", Applicability{EntityTypes: []string{"post"}}, MetaKindPost, "post", 1, true, true},
		{"type mismatch", Applicability{EntityTypes: []string{"page"}}, MetaKindPost, "post", 1, false, true},
		{"type match id mismatch", Applicability{EntityTypes: []string{"post"}, EntityIDs: []int64{99999}}, MetaKindPost, "post", 1, true, false},
		{"type match id match", Applicability{EntityTypes: []string{"post"}, EntityIDs: []int64{1}}, MetaKindPost, "post", 1, true, true},
		{"role match", Applicability{Roles: []string{"editor"}}, MetaKindUser, "editor", 3, true, true},
		{"role mismatch", Applicability{Roles: []string{"administrator"}}, MetaKindUser, "editor", 3, false, true},
		{"role schema does not target posts", Applicability{Roles: []string{"editor"}}, MetaKindPost, "post", 3, false, true},
		{"type schema does not target users", Applicability{EntityTypes: []string{"post"}}, MetaKindUser, "editor", 3, false, true},
		{"id list alone targets every type", Applicability{EntityIDs: []int64{5}}, MetaKindPost, "page", 4, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.targets, tt.a.Targets(tt.kind, tt.typeOrRole))
			assert.Equal(t, tt.allowsID, tt.a.AllowsID(tt.id))
		})
	}
}

func TestValuesKeepOrder(t *testing.T) {
	v := NewValues()
	v.Set("text", "hoge")
	v.Set("checkbox", []string{"1", "2"})
	v.Set("group-name-3", []Row{{"text3": "", "checkbox3": []string{"1"}}})
	v.Set("text", "fuga")

	assert.Equal(t, []string{"text", "checkbox", "group-name-3"}, v.Keys())
	assert.Equal(t, 3, v.Len())
	got, ok := v.Get("text")
	require.True(t, ok)
	assert.Equal(t, "fuga", got)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t,
		`{"text":"fuga","checkbox":["1","2"],"group-name-3":[{"checkbox3":["1"],"text3":""}]}`,
		string(data))
}

func TestParseMetaKind(t *testing.T) {
	k, err := ParseMetaKind("user")
	require.NoError(t, err)
	assert.Equal(t, MetaKindUser, k)

	_, err = ParseMetaKind("comment")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestEntityTarget(t *testing.T) {
	post := &Entity{Ref: PostRef(10), Type: "post"}
	assert.Equal(t, Target{Kind: MetaKindPost, TypeOrRole: "post", ID: 10}, post.Target())

	user := &Entity{Ref: UserRef(4), Roles: []string{"editor", "author"}}
	assert.Equal(t, Target{Kind: MetaKindUser, TypeOrRole: "editor", ID: 4}, user.Target())

	roleless := &Entity{Ref: UserRef(5)}
	assert.Equal(t, "", roleless.TypeOrRole())
}
