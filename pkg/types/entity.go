package types

import "fmt"

// MetaKind names the metadata space an entity lives in.
type MetaKind string

// Supported metadata kinds.
const (
	MetaKindPost MetaKind = "post"
	MetaKindUser MetaKind = "user"
)

// Valid reports whether k is a known kind.
func (k MetaKind) Valid() bool {
	return k == MetaKindPost || k == MetaKindUser
}

// ParseMetaKind converts a string to a MetaKind.
// Returns ErrInvalidKind for anything other than "post" or "user".
func ParseMetaKind(s string) (MetaKind, error) {
	k := MetaKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidKind)
	}
	return k, nil
}

// EntityRef identifies an entity whose metadata the store holds.
type EntityRef struct {
	Kind MetaKind `json:"kind"`
	ID   int64    `json:"id"`
}

// PostRef returns the reference for post id.
func PostRef(id int64) EntityRef { return EntityRef{Kind: MetaKindPost, ID: id} }

// UserRef returns the reference for user id.
func UserRef(id int64) EntityRef { return EntityRef{Kind: MetaKindUser, ID: id} }

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Entity is what the store knows about a post or user beyond its metadata.
// Type is the post type (e.g. "post", "page", "revision"); Roles are the
// user's roles, most significant first. ParentID links a revision to its post.
type Entity struct {
	Ref      EntityRef `json:"ref"`
	Type     string    `json:"type,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	ParentID int64     `json:"parent_id,omitempty"`
}

// TypeOrRole returns the string schemas are matched against: the post type
// for posts and the primary role for users.
func (e *Entity) TypeOrRole() string {
	if e.Ref.Kind == MetaKindUser {
		if len(e.Roles) == 0 {
			return ""
		}
		return e.Roles[0]
	}
	return e.Type
}

// Target returns the resolver input for this entity.
func (e *Entity) Target() Target {
	return Target{Kind: e.Ref.Kind, TypeOrRole: e.TypeOrRole(), ID: e.Ref.ID}
}

// Target is the input of schema resolution.
type Target struct {
	Kind       MetaKind `json:"kind"`
	TypeOrRole string   `json:"type_or_role"`
	ID         int64    `json:"id"`
}
