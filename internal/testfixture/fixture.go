// Package testfixture holds the schemas and entities shared by package tests.
package testfixture

import (
	"context"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Entity ids used across tests.
const (
	PostID     int64 = 10
	RevisionID int64 = 11
	UserID     int64 = 20
	OtherPost  int64 = 12
)

// Schema returns the "Register Test" schema: two flat groups holding a text
// and a checkbox field, and one repeatable group holding one of each.
func Schema() *types.Schema {
	s := types.NewSchema("id-1", "Register Test")
	s.AddGroup("group-name-1", false, types.FieldDefinition{
		Name: "text", Label: "text field", Type: types.FieldTypeText,
	})
	s.AddGroup("group-name-2", false, types.FieldDefinition{
		Name: "checkbox", Label: "checkbox field", Type: types.FieldTypeCheck, Choices: []string{"1", "2", "3"},
	})
	s.AddGroup("group-name-3", true,
		types.FieldDefinition{Name: "text3", Label: "text field 3", Type: types.FieldTypeText},
		types.FieldDefinition{Name: "checkbox3", Label: "checkbox field 3", Type: types.FieldTypeCheck, Choices: []string{"1", "2", "3"}},
	)
	return s
}

// Contributor registers Schema for the fixture post, its revision and every
// editor.
func Contributor() types.Contributor {
	return types.ContributorFunc(func(ctx context.Context, req types.ContributionRequest) ([]*types.Schema, error) {
		t := req.Target
		if (t.TypeOrRole == "post" && (t.ID == PostID || t.ID == RevisionID)) || t.TypeOrRole == "editor" {
			return []*types.Schema{Schema()}, nil
		}
		return nil, nil
	})
}

// Seeder is the store surface Seed needs.
type Seeder interface {
	PutEntity(ctx context.Context, e *types.Entity) error
}

// Seed creates the fixture post, revision and editor user.
func Seed(ctx context.Context, s Seeder) error {
	for _, e := range []*types.Entity{
		{Ref: types.PostRef(PostID), Type: "post"},
		{Ref: types.PostRef(OtherPost), Type: "post"},
		{Ref: types.PostRef(RevisionID), Type: "revision", ParentID: PostID},
		{Ref: types.UserRef(UserID), Roles: []string{"editor"}},
	} {
		if err := s.PutEntity(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
