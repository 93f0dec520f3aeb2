package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/metafields/internal/testfixture"
	"github.com/mesh-intelligence/metafields/pkg/fields"
	"github.com/mesh-intelligence/metafields/pkg/sqlite"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

func TestNewBackendServesFields(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	backend := sqlite.NewBackend(nil)
	require.NoError(t, backend.Attach(cfg))
	require.NoError(t, testfixture.Seed(ctx, backend))

	svc := fields.New(backend, fields.WithContributors(testfixture.Contributor()))
	require.NoError(t, svc.Save(ctx, types.PostRef(testfixture.PostID), map[string]any{"text": "hoge"}))
	require.NoError(t, backend.Detach())

	reopened := sqlite.NewBackend(nil)
	require.NoError(t, reopened.Attach(cfg))
	t.Cleanup(func() { _ = reopened.Detach() })

	keys, err := reopened.Keys(ctx, types.PostRef(testfixture.PostID))
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, keys)

	got, err := fields.New(reopened, fields.WithContributors(testfixture.Contributor())).Get(ctx, "text", testfixture.PostID)
	require.NoError(t, err)
	assert.Equal(t, "hoge", got)
}
