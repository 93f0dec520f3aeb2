// Package storetest holds the behavioural tests every types.Store
// implementation must pass.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// Run exercises a fresh store from newStore against the shared contract.
func Run(t *testing.T, newStore func(t *testing.T) types.Store) {
	t.Helper()
	ctx := context.Background()
	post := types.PostRef(1)
	user := types.UserRef(1)

	seeded := func(t *testing.T) types.Store {
		s := newStore(t)
		require.NoError(t, s.PutEntity(ctx, &types.Entity{Ref: post, Type: "post"}))
		require.NoError(t, s.PutEntity(ctx, &types.Entity{Ref: user, Roles: []string{"editor", "author"}}))
		return s
	}

	t.Run("entity round trip", func(t *testing.T) {
		s := seeded(t)
		e, err := s.Entity(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, []string{"editor", "author"}, e.Roles)
		assert.Equal(t, "editor", e.TypeOrRole())

		require.NoError(t, s.PutEntity(ctx, &types.Entity{Ref: types.PostRef(2), Type: "revision", ParentID: 1}))
		e, err = s.Entity(ctx, types.PostRef(2))
		require.NoError(t, err)
		assert.Equal(t, "revision", e.Type)
		assert.Equal(t, int64(1), e.ParentID)
	})

	t.Run("post and user ids are separate", func(t *testing.T) {
		s := seeded(t)
		require.NoError(t, s.AddValue(ctx, post, "k", "post"))
		vals, err := s.Values(ctx, user, "k")
		require.NoError(t, err)
		assert.Empty(t, vals)
	})

	t.Run("unknown entity", func(t *testing.T) {
		s := seeded(t)
		for _, ref := range []types.EntityRef{types.PostRef(0), types.PostRef(-1), types.PostRef(999)} {
			_, err := s.Entity(ctx, ref)
			assert.ErrorIs(t, err, types.ErrNotFound, ref.String())
		}
		_, err := s.Values(ctx, types.PostRef(999), "k")
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.ErrorIs(t, s.AddValue(ctx, types.PostRef(999), "k", "v"), types.ErrNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		s := seeded(t)
		assert.ErrorIs(t, s.PutEntity(ctx, &types.Entity{Ref: types.PostRef(0)}), types.ErrInvalidID)
		assert.ErrorIs(t, s.PutEntity(ctx, &types.Entity{Ref: types.EntityRef{Kind: "comment", ID: 1}}), types.ErrInvalidKind)
		assert.ErrorIs(t, s.AddValue(ctx, post, "", "v"), types.ErrInvalidKey)
		assert.ErrorIs(t, s.ReplaceValues(ctx, post, "", nil), types.ErrInvalidKey)
	})

	t.Run("values keep insertion order", func(t *testing.T) {
		s := seeded(t)
		vals, err := s.Values(ctx, post, "checkbox")
		require.NoError(t, err)
		assert.Empty(t, vals)

		for _, v := range []string{"3", "1", "2", "1"} {
			require.NoError(t, s.AddValue(ctx, post, "checkbox", v))
		}
		vals, err = s.Values(ctx, post, "checkbox")
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "1", "2", "1"}, vals)
	})

	t.Run("replace and remove", func(t *testing.T) {
		s := seeded(t)
		require.NoError(t, s.AddValue(ctx, post, "k", "old"))
		require.NoError(t, s.ReplaceValues(ctx, post, "k", []string{"a", "b"}))
		vals, err := s.Values(ctx, post, "k")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, vals)

		require.NoError(t, s.AddValue(ctx, post, "k", "c"))
		vals, err = s.Values(ctx, post, "k")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, vals)

		require.NoError(t, s.ReplaceValues(ctx, post, "k", nil))
		vals, err = s.Values(ctx, post, "k")
		require.NoError(t, err)
		assert.Empty(t, vals)

		require.NoError(t, s.AddValue(ctx, post, "k", "x"))
		require.NoError(t, s.RemoveValues(ctx, post, "k"))
		require.NoError(t, s.RemoveValues(ctx, post, "never-set"))
		vals, err = s.Values(ctx, post, "k")
		require.NoError(t, err)
		assert.Empty(t, vals)
	})

	t.Run("structured bytes are kept verbatim", func(t *testing.T) {
		s := seeded(t)
		raw, err := s.Structured(ctx, post, types.RepeatMultipleDataKey)
		require.NoError(t, err)
		assert.Nil(t, raw)

		php := []byte(`a:1:{s:9:"checkbox3";a:2:{i:0;i:1;i:1;i:2;}}`)
		require.NoError(t, s.SetStructured(ctx, post, types.RepeatMultipleDataKey, php))
		raw, err = s.Structured(ctx, post, types.RepeatMultipleDataKey)
		require.NoError(t, err)
		assert.Equal(t, php, raw)

		require.NoError(t, s.SetStructured(ctx, post, types.RepeatMultipleDataKey, []byte(`{"checkbox3":[1]}`)))
		raw, err = s.Structured(ctx, post, types.RepeatMultipleDataKey)
		require.NoError(t, err)
		assert.JSONEq(t, `{"checkbox3":[1]}`, string(raw))
	})

	t.Run("put entity keeps metadata", func(t *testing.T) {
		s := seeded(t)
		require.NoError(t, s.AddValue(ctx, post, "text", "hello"))
		require.NoError(t, s.PutEntity(ctx, &types.Entity{Ref: post, Type: "page"}))
		vals, err := s.Values(ctx, post, "text")
		require.NoError(t, err)
		assert.Equal(t, []string{"hello"}, vals)
	})
}
