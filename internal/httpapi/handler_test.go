package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/metafields/internal/memory"
	"github.com/mesh-intelligence/metafields/internal/metrics"
	"github.com/mesh-intelligence/metafields/internal/testfixture"
	"github.com/mesh-intelligence/metafields/pkg/fields"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

func newServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, testfixture.Seed(ctx, store))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	collector := metrics.New()
	svc := fields.New(store,
		fields.WithLogger(logger),
		fields.WithObserver(collector),
		fields.WithContributors(testfixture.Contributor()))

	srv := httptest.NewServer(New(svc, logger, collector.Handler()).Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestReadRoutes(t *testing.T) {
	srv, store := newServer(t)
	ctx := context.Background()
	post := types.PostRef(testfixture.PostID)
	require.NoError(t, store.AddValue(ctx, post, "text", "hoge"))
	require.NoError(t, store.SetStructured(ctx, post, types.RepeatMultipleDataKey, []byte(`{"checkbox3":[1,2]}`)))
	for _, v := range []string{"1", "2", "3"} {
		require.NoError(t, store.AddValue(ctx, post, "checkbox3", v))
	}

	tests := []struct {
		name     string
		path     string
		status   int
		wantJSON string
	}{
		{
			name:     "all post fields keep schema order",
			path:     "/posts/10/fields",
			status:   http.StatusOK,
			wantJSON: `{"text":"hoge","checkbox":[],"group-name-3":[{"text3":"","checkbox3":["1"]},{"text3":"","checkbox3":["2","3"]}]}`,
		},
		{
			name:     "one post field",
			path:     "/posts/10/fields/checkbox3",
			status:   http.StatusOK,
			wantJSON: `{"name":"checkbox3","value":[["1"],["2","3"]]}`,
		},
		{
			name:     "empty user field",
			path:     "/users/20/fields/text",
			status:   http.StatusOK,
			wantJSON: `{"name":"text","value":""}`,
		},
		{name: "unknown field", path: "/posts/10/fields/not_exist", status: http.StatusNotFound},
		{name: "unknown post", path: "/posts/99999/fields", status: http.StatusNotFound},
		{name: "unresolvable id", path: "/users/0/fields/text", status: http.StatusNotFound},
		{name: "malformed id", path: "/posts/abc/fields", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodGet, srv.URL+tt.path, "")
			assert.Equal(t, tt.status, status, body)
			if tt.wantJSON != "" {
				assert.JSONEq(t, tt.wantJSON, body)
			}
			if tt.status >= 400 {
				var e ErrorResponse
				require.NoError(t, json.Unmarshal([]byte(body), &e))
				assert.NotEmpty(t, e.Error)
			}
		})
	}

	t.Run("key order on the wire", func(t *testing.T) {
		_, body := do(t, http.MethodGet, srv.URL+"/posts/10/fields", "")
		assert.Less(t, strings.Index(body, `"text"`), strings.Index(body, `"checkbox"`))
		assert.Less(t, strings.Index(body, `"checkbox"`), strings.Index(body, `"group-name-3"`))
	})
}

func TestSaveRoute(t *testing.T) {
	srv, store := newServer(t)

	status, body := do(t, http.MethodPut, srv.URL+"/users/20/fields",
		`{"text":"hi","group-name-3":[{"text3":"a","checkbox3":["1","2"]},{"text3":"b","checkbox3":[]}]}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.JSONEq(t,
		`{"text":"hi","checkbox":[],"group-name-3":[{"text3":"a","checkbox3":["1","2"]},{"text3":"b","checkbox3":[]}]}`,
		body)

	raw, err := store.Structured(context.Background(), types.UserRef(testfixture.UserID), types.RepeatMultipleDataKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"checkbox3":[2,0]}`, string(raw))

	status, _ = do(t, http.MethodPut, srv.URL+"/users/20/fields", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, http.MethodPut, srv.URL+"/users/20/fields", `{"group-name-3":"oops"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, http.MethodPut, srv.URL+"/posts/99999/fields", `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRestoreRevisionRoute(t *testing.T) {
	srv, store := newServer(t)
	ctx := context.Background()
	require.NoError(t, store.AddValue(ctx, types.PostRef(testfixture.PostID), "text", "text"))
	require.NoError(t, store.AddValue(ctx, types.PostRef(testfixture.RevisionID), "text", "text-2"))

	status, body := do(t, http.MethodPost, srv.URL+"/posts/10/revisions/11/restore", "")
	require.Equal(t, http.StatusNoContent, status, body)

	status, body = do(t, http.MethodGet, srv.URL+"/posts/10/fields/text", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"name":"text","value":"text-2"}`, body)

	status, _ = do(t, http.MethodPost, srv.URL+"/posts/99999/revisions/11/restore", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, http.MethodPost, srv.URL+"/posts/12/revisions/11/restore", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newServer(t)
	do(t, http.MethodGet, srv.URL+"/posts/10/fields", "")

	status, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `metafields_operations_total{op="get_all"} 1`)
}
