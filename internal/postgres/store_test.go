package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/metafields/internal/storetest"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

const dsnEnv = "METAFIELDS_TEST_POSTGRES_DSN"

func TestStoreContract(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	storetest.Run(t, func(t *testing.T) types.Store {
		_, err := s.pool.Exec(ctx, "TRUNCATE meta, entities")
		require.NoError(t, err)
		return s
	})
}

func TestHandlePostgresError(t *testing.T) {
	err := handlePostgresError("op", context.Canceled)
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, err.Error(), "op")
}
