package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/metafields/internal/testfixture"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

type staticSource []*types.Schema

func (s staticSource) Schemas(context.Context) ([]*types.Schema, error) { return s, nil }

type failingSource struct{}

func (failingSource) Schemas(context.Context) ([]*types.Schema, error) {
	return nil, errors.New("disk on fire")
}

type countingObserver struct {
	hits, misses map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{hits: map[string]int{}, misses: map[string]int{}}
}

func (o *countingObserver) ObserveCache(cache string, hit bool) {
	if hit {
		o.hits[cache]++
		return
	}
	o.misses[cache]++
}

func defined(id string, a types.Applicability) *types.Schema {
	s := types.NewSchema(id, "test_settings")
	s.AddGroup("g", false, types.FieldDefinition{Name: "f-" + id, Type: types.FieldTypeText})
	s.Applicability = a
	return s
}

func postTarget(typ string, id int64) types.Target {
	return types.Target{Kind: types.MetaKindPost, TypeOrRole: typ, ID: id}
}

func userTarget(role string, id int64) types.Target {
	return types.Target{Kind: types.MetaKindUser, TypeOrRole: role, ID: id}
}

func titles(schemas []*types.Schema) []string {
	var out []string
	for _, s := range schemas {
		out = append(out, s.Title)
	}
	return out
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	post := testfixture.PostID

	tests := []struct {
		name   string
		source []*types.Schema
		target types.Target
		want   []string
	}{
		{
			name:   "defined schema for the type plus contributed schema",
			source: []*types.Schema{defined("s1", types.Applicability{EntityTypes: []string{"post"}})},
			target: postTarget("post", post),
			want:   []string{"test_settings", "Register Test"},
		},
		{
			name:   "global schema applies everywhere",
			source: []*types.Schema{defined("s1", types.Applicability{})},
			target: postTarget("post", 99999),
			want:   []string{"test_settings"},
		},
		{
			name:   "type matches but id is outside the allow-list",
			source: []*types.Schema{defined("s1", types.Applicability{EntityTypes: []string{"post"}, EntityIDs: []int64{post}})},
			target: postTarget("post", 99999),
			want:   nil,
		},
		{
			name:   "type matches without an allow-list",
			source: []*types.Schema{defined("s1", types.Applicability{EntityTypes: []string{"post"}})},
			target: postTarget("post", 99999),
			want:   []string{"test_settings"},
		},
		{
			name:   "type does not match",
			source: []*types.Schema{defined("s1", types.Applicability{EntityTypes: []string{"post"}})},
			target: postTarget("page", post),
			want:   nil,
		},
		{
			name:   "role matches",
			source: []*types.Schema{defined("s1", types.Applicability{Roles: []string{"editor"}})},
			target: userTarget("editor", testfixture.UserID),
			want:   []string{"test_settings", "Register Test"},
		},
		{
			name:   "role does not match",
			source: []*types.Schema{defined("s1", types.Applicability{Roles: []string{"editor"}})},
			target: userTarget("administrator", testfixture.UserID),
			want:   nil,
		},
		{
			name:   "post-only schema does not target users",
			source: []*types.Schema{defined("s1", types.Applicability{EntityTypes: []string{"post"}})},
			target: userTarget("subscriber", 99999),
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(staticSource(tt.source), WithContributors(testfixture.Contributor()))
			got, err := r.Resolve(ctx, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestResolveContributorSeesAccumulated(t *testing.T) {
	ctx := context.Background()
	var seen []string
	spy := types.ContributorFunc(func(_ context.Context, req types.ContributionRequest) ([]*types.Schema, error) {
		seen = titles(req.Accumulated)
		return nil, nil
	})

	r := New(staticSource{defined("s1", types.Applicability{})},
		WithContributors(testfixture.Contributor()))
	r.Register(spy)

	_, err := r.Resolve(ctx, postTarget("post", testfixture.PostID))
	require.NoError(t, err)
	assert.Equal(t, []string{"test_settings", "Register Test"}, seen)
}

func TestResolveErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("source failure", func(t *testing.T) {
		_, err := New(failingSource{}).Resolve(ctx, postTarget("post", 1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk on fire")
	})

	t.Run("contributor failure", func(t *testing.T) {
		boom := errors.New("boom")
		r := New(nil, WithContributors(types.ContributorFunc(
			func(context.Context, types.ContributionRequest) ([]*types.Schema, error) { return nil, boom })))
		_, err := r.Resolve(ctx, postTarget("post", 1))
		assert.ErrorIs(t, err, boom)
	})
}

func TestResolveCaches(t *testing.T) {
	ctx := context.Background()
	calls := 0
	counting := types.ContributorFunc(func(context.Context, types.ContributionRequest) ([]*types.Schema, error) {
		calls++
		return nil, nil
	})
	obs := newCountingObserver()
	r := New(staticSource{defined("s1", types.Applicability{EntityTypes: []string{"post"}})},
		WithContributors(counting), WithObserver(obs))

	_, ok := r.DefinedCached(types.MetaKindPost, "post")
	assert.False(t, ok, "defined cache is empty before resolution")

	first, err := r.Resolve(ctx, postTarget("post", 1))
	require.NoError(t, err)
	second, err := r.Resolve(ctx, postTarget("post", 1))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, obs.hits[CacheResolved])

	cached, ok := r.DefinedCached(types.MetaKindPost, "post")
	require.True(t, ok)
	assert.Equal(t, []string{"test_settings"}, titles(cached))

	// A different id reuses the defined query but runs contributors again.
	_, err = r.Resolve(ctx, postTarget("post", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, obs.hits[CacheDefined])

	r.Reset()
	_, ok = r.DefinedCached(types.MetaKindPost, "post")
	assert.False(t, ok)
	_, err = r.Resolve(ctx, postTarget("post", 1))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	post, user := testfixture.PostID, testfixture.UserID

	tests := []struct {
		name    string
		schema  *types.Schema
		target  types.Target
		kind    types.MetaKind
		id      int64
		outcome Outcome
	}{
		{
			name:    "type matches, looked up without kind",
			schema:  defined("s1", types.Applicability{EntityTypes: []string{"post"}}),
			target:  postTarget("post", post),
			outcome: Found,
		},
		{
			name:    "type does not match",
			schema:  defined("s1", types.Applicability{EntityTypes: []string{"page"}}),
			target:  postTarget("post", post),
			outcome: NotFound,
		},
		{
			name:    "type and id match",
			schema:  defined("s1", types.Applicability{EntityTypes: []string{"post"}, EntityIDs: []int64{post}}),
			target:  postTarget("post", post),
			kind:    types.MetaKindPost,
			id:      post,
			outcome: Found,
		},
		{
			name:    "type matches but id does not",
			schema:  defined("s1", types.Applicability{EntityTypes: []string{"post"}, EntityIDs: []int64{99999}}),
			target:  postTarget("post", post),
			kind:    types.MetaKindPost,
			id:      post,
			outcome: NoMatch,
		},
		{
			name:    "role matches",
			schema:  defined("s1", types.Applicability{Roles: []string{"editor"}}),
			target:  userTarget("editor", user),
			kind:    types.MetaKindUser,
			id:      user,
			outcome: Found,
		},
		{
			name:    "role does not match",
			schema:  defined("s1", types.Applicability{Roles: []string{"administrator"}}),
			target:  userTarget("editor", user),
			kind:    types.MetaKindUser,
			id:      user,
			outcome: NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(staticSource{tt.schema})
			_, err := r.Resolve(ctx, tt.target)
			require.NoError(t, err)

			got := r.Cached(tt.schema.ID, tt.kind, tt.id)
			assert.Equal(t, tt.outcome, got.Outcome, got.Outcome.String())
			if tt.outcome == Found {
				assert.Same(t, tt.schema, got.Schema)
			} else {
				assert.Nil(t, got.Schema)
			}
		})
	}

	t.Run("reset forgets verdicts", func(t *testing.T) {
		s := defined("s1", types.Applicability{EntityTypes: []string{"post"}})
		r := New(staticSource{s})
		_, err := r.Resolve(ctx, postTarget("post", post))
		require.NoError(t, err)
		r.Reset()
		assert.Equal(t, NotFound, r.Cached(s.ID, "", 0).Outcome)
	})
}
