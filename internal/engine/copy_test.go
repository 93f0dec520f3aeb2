package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/metafields/internal/memory"
	"github.com/mesh-intelligence/metafields/internal/testfixture"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

func TestCopyAll(t *testing.T) {
	ctx := context.Background()
	schemas := []*types.Schema{testfixture.Schema()}
	post := types.PostRef(testfixture.PostID)
	revision := types.PostRef(testfixture.RevisionID)

	setup := func(t *testing.T) *memory.Store {
		store := memory.New()
		require.NoError(t, testfixture.Seed(ctx, store))

		// Post metadata.
		require.NoError(t, store.AddValue(ctx, post, "text", "text"))
		require.NoError(t, store.AddValue(ctx, post, "checkbox", "check"))
		require.NoError(t, store.AddValue(ctx, post, "text3", "loop-text"))

		// Revision metadata.
		require.NoError(t, store.AddValue(ctx, revision, "text", "text-2"))
		require.NoError(t, store.SetStructured(ctx, revision, types.RepeatMultipleDataKey,
			[]byte(`a:1:{s:9:"checkbox3";a:2:{i:0;i:1;i:1;i:2;}}`)))
		for _, v := range []string{"loop-check-1", "loop-check-2", "loop-check-3"} {
			require.NoError(t, store.AddValue(ctx, revision, "checkbox3", v))
		}
		return store
	}

	t.Run("restores revision onto post", func(t *testing.T) {
		store := setup(t)
		e := New()
		require.NoError(t, e.CopyAll(ctx, store, revision, post, schemas))

		snap, err := e.ReadSnapshot(ctx, store, post, schemas)
		require.NoError(t, err)

		got, _ := e.GetValue(schemas, snap, "text")
		assert.Equal(t, "text-2", got)
		got, _ = e.GetValue(schemas, snap, "checkbox")
		assert.Equal(t, []string{}, got)
		got, _ = e.GetValue(schemas, snap, "text3")
		assert.Equal(t, []string{}, got)
		got, _ = e.GetValue(schemas, snap, "checkbox3")
		assert.Equal(t, [][]string{{"loop-check-1"}, {"loop-check-2", "loop-check-3"}}, got)

		record, err := store.Structured(ctx, post, types.RepeatMultipleDataKey)
		require.NoError(t, err)
		assert.Equal(t, `a:1:{s:9:"checkbox3";a:2:{i:0;i:1;i:1;i:2;}}`, string(record),
			"partition record must be copied byte for byte")
	})

	t.Run("missing source partition removes stale target record", func(t *testing.T) {
		store := setup(t)
		require.NoError(t, New().CopyAll(ctx, store, post, revision, schemas))

		record, err := store.Structured(ctx, revision, types.RepeatMultipleDataKey)
		require.NoError(t, err)
		assert.Nil(t, record)
		vals, err := store.Values(ctx, revision, "checkbox3")
		require.NoError(t, err)
		assert.Empty(t, vals)
		vals, err = store.Values(ctx, revision, "text")
		require.NoError(t, err)
		assert.Equal(t, []string{"text"}, vals)
	})

	t.Run("keys outside the schema are left alone", func(t *testing.T) {
		store := setup(t)
		require.NoError(t, store.AddValue(ctx, post, "_edit_lock", "123"))
		require.NoError(t, New().CopyAll(ctx, store, revision, post, schemas))

		vals, err := store.Values(ctx, post, "_edit_lock")
		require.NoError(t, err)
		assert.Equal(t, []string{"123"}, vals)
	})

	t.Run("unknown target fails", func(t *testing.T) {
		store := setup(t)
		err := New().CopyAll(ctx, store, revision, types.PostRef(404), schemas)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}
