package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/metafields/internal/memory"
	"github.com/mesh-intelligence/metafields/internal/testfixture"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

func TestSave(t *testing.T) {
	ctx := context.Background()
	schemas := []*types.Schema{testfixture.Schema()}
	ref := types.PostRef(testfixture.PostID)

	setup := func(t *testing.T) *memory.Store {
		store := memory.New()
		require.NoError(t, testfixture.Seed(ctx, store))
		return store
	}

	t.Run("round trips through GetAll", func(t *testing.T) {
		store := setup(t)
		e := New()
		input := map[string]any{
			"text":     "hoge",
			"checkbox": []string{"1", "2"},
			"group-name-3": []types.Row{
				{"text3": "first", "checkbox3": []string{"1"}},
				{"text3": "", "checkbox3": []any{"2", 3}},
			},
		}
		require.NoError(t, e.Save(ctx, store, ref, schemas, input))

		raw, err := store.Values(ctx, ref, "checkbox3")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", "3"}, raw)
		record, err := store.Structured(ctx, ref, types.RepeatMultipleDataKey)
		require.NoError(t, err)
		assert.JSONEq(t, `{"checkbox3":[1,2]}`, string(record))

		snap, err := e.ReadSnapshot(ctx, store, ref, schemas)
		require.NoError(t, err)
		want := map[string]types.Value{
			"text":     "hoge",
			"checkbox": []string{"1", "2"},
			"group-name-3": []types.Row{
				{"text3": "first", "checkbox3": []string{"1"}},
				{"text3": "", "checkbox3": []string{"2", "3"}},
			},
		}
		if diff := cmp.Diff(want, e.GetAll(schemas, snap).Map()); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("rows without selection keep their position", func(t *testing.T) {
		store := setup(t)
		e := New()
		input := map[string]any{
			"group-name-3": []map[string]any{
				{"text3": "a"},
				{"text3": "b", "checkbox3": []string{"2"}},
			},
		}
		require.NoError(t, e.Save(ctx, store, ref, schemas, input))

		snap, err := e.ReadSnapshot(ctx, store, ref, schemas)
		require.NoError(t, err)
		got, ok := e.GetValue(schemas, snap, "checkbox3")
		require.True(t, ok)
		assert.Equal(t, [][]string{{}, {"2"}}, got)
		got, ok = e.GetValue(schemas, snap, "text3")
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("empty input clears stored values", func(t *testing.T) {
		store := setup(t)
		require.NoError(t, store.AddValue(ctx, ref, "checkbox", "1"))
		require.NoError(t, store.AddValue(ctx, ref, "text", "old"))
		e := New()
		require.NoError(t, e.Save(ctx, store, ref, schemas, map[string]any{
			"checkbox": []string{},
			"text":     nil,
		}))
		vals, err := store.Values(ctx, ref, "checkbox")
		require.NoError(t, err)
		assert.Empty(t, vals)
		vals, err = store.Values(ctx, ref, "text")
		require.NoError(t, err)
		assert.Empty(t, vals)
	})

	t.Run("zero rows removes the partition record", func(t *testing.T) {
		store := setup(t)
		require.NoError(t, store.SetStructured(ctx, ref, types.RepeatMultipleDataKey, []byte(`{"checkbox3":[1]}`)))
		require.NoError(t, store.AddValue(ctx, ref, "checkbox3", "1"))

		require.NoError(t, New().Save(ctx, store, ref, schemas, map[string]any{"group-name-3": []types.Row{}}))
		record, err := store.Structured(ctx, ref, types.RepeatMultipleDataKey)
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("keys absent from input are untouched", func(t *testing.T) {
		store := setup(t)
		require.NoError(t, store.AddValue(ctx, ref, "text", "keep"))
		require.NoError(t, New().Save(ctx, store, ref, schemas, map[string]any{"checkbox": "2"}))
		vals, err := store.Values(ctx, ref, "text")
		require.NoError(t, err)
		assert.Equal(t, []string{"keep"}, vals)
	})

	t.Run("single value field keeps the first value only", func(t *testing.T) {
		store := setup(t)
		require.NoError(t, New().Save(ctx, store, ref, schemas, map[string]any{"text": []string{"a", "b"}}))
		vals, err := store.Values(ctx, ref, "text")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, vals)
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		store := setup(t)
		err := New().Save(ctx, store, ref, schemas, map[string]any{"text": struct{}{}})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
		err = New().Save(ctx, store, ref, schemas, map[string]any{"group-name-3": "not rows"})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}
