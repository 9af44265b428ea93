package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/predicate"
	"github.com/dshills/projectindex/internal/schema"
	"github.com/dshills/projectindex/internal/testutil"
	"github.com/dshills/projectindex/pkg/types"
)

type fixture struct {
	loader  *testutil.MemoryLoader
	cache   *cache.ProjectCache
	indexes *index.Collection
	idx     index.Index
}

func newFixture(t *testing.T, sch *schema.Schema) *fixture {
	t.Helper()
	loader := testutil.NewMemoryLoader(
		types.Project{Name: "acme", Description: "Company root", ConfigHash: "r1"},
		types.Project{Name: "acme/core", Parent: "acme", Description: "Core services", ConfigHash: "c1"},
		types.Project{Name: "acme/web", Parent: "acme", Description: "Frontend", ConfigHash: "w1", State: types.StateHidden},
	)
	c := testutil.NewCache(t, loader)
	idx := testutil.OpenIndex(t, testutil.OpenStorage(t), sch)

	ctx := context.Background()
	names, err := c.All(ctx)
	require.NoError(t, err)
	for _, name := range names {
		state, ok, err := c.Get(ctx, name)
		require.NoError(t, err)
		require.True(t, ok)
		pd, err := state.ToProjectData(ctx)
		require.NoError(t, err)
		require.NoError(t, idx.Replace(ctx, pd))
	}

	indexes := index.NewCollection()
	indexes.AddWriteIndex(idx)
	indexes.SetSearchIndex(idx)
	return &fixture{loader: loader, cache: c, indexes: indexes, idx: idx}
}

func TestRewrite_NoSearchIndex(t *testing.T) {
	f := newFixture(t, schema.V5)
	f.indexes.SetSearchIndex(nil)

	_, err := NewIndexRewriter(f.indexes, f.cache).Rewrite(predicate.Any(), index.QueryOptions{})
	assert.ErrorIs(t, err, index.ErrNoSearchIndex)
}

func TestRewrite_ChecksFields(t *testing.T) {
	f := newFixture(t, schema.V4)
	r := NewIndexRewriter(f.indexes, f.cache)

	_, err := r.Rewrite(predicate.State(types.StateHidden), index.QueryOptions{})
	assert.ErrorIs(t, err, index.ErrUnsupportedField)

	_, err = r.Rewrite(predicate.Any(), index.QueryOptions{Start: -1})
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	f := newFixture(t, schema.V5)
	r := NewIndexRewriter(f.indexes, f.cache)
	ctx := context.Background()

	q, err := r.Rewrite(predicate.Ancestor("acme"), index.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Cost())
	assert.Same(t, f.idx, q.Index())

	results, err := q.Read(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "acme/core", results[0].Name())
	assert.Equal(t, []string{"acme"}, results[0].ParentNames())
	assert.Equal(t, "acme/web", results[1].Name())
}

func TestRead_SkipsVanishedProjects(t *testing.T) {
	f := newFixture(t, schema.V5)
	r := NewIndexRewriter(f.indexes, f.cache)
	ctx := context.Background()

	f.loader.Remove("acme/web")
	f.cache.Evict("acme/web")

	q, err := r.Rewrite(predicate.Parent("acme"), index.QueryOptions{})
	require.NoError(t, err)

	names, err := q.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/core", "acme/web"}, names)

	results, err := q.Read(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme/core", results[0].Name())
}

func TestReadChecked_DropsOutdatedMatches(t *testing.T) {
	f := newFixture(t, schema.V5)
	r := NewIndexRewriter(f.indexes, f.cache)
	ctx := context.Background()

	// The index still says "Core services" but the project moved on
	f.loader.SetDescription("acme/core", "Backend platform")
	f.cache.Evict("acme/core")

	q, err := r.Rewrite(predicate.Description("core"), index.QueryOptions{})
	require.NoError(t, err)

	results, err := q.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	checked, err := q.ReadChecked(ctx)
	require.NoError(t, err)
	assert.Empty(t, checked)
}

func TestMatch_AgreesWithChild(t *testing.T) {
	f := newFixture(t, schema.V5)
	r := NewIndexRewriter(f.indexes, f.cache)

	candidates := []*types.ProjectData{
		types.NewProjectData(types.Project{Name: "acme/core", Parent: "acme", Description: "Core services"},
			types.NewProjectData(types.Project{Name: "acme"}, nil)),
		types.NewProjectData(types.Project{Name: "solo", State: types.StateHidden}, nil),
	}
	preds := []predicate.Predicate{
		predicate.Ancestor("acme"),
		predicate.Not(predicate.State(types.StateHidden)),
		predicate.Or(predicate.InName("so"), predicate.Description("services")),
		predicate.Any(),
	}

	for _, pred := range preds {
		q, err := r.Rewrite(pred, index.QueryOptions{})
		require.NoError(t, err)
		for _, pd := range candidates {
			got, err := q.Match(pd)
			require.NoError(t, err)
			assert.Equal(t, pred.(predicate.Matcher).Match(pd), got, "%s on %s", pred, pd.Name())
		}
	}
}

type remoteOnly struct{}

func (remoteOnly) String() string { return "remote" }

func TestMatch_NotMatchable(t *testing.T) {
	q := &IndexedQuery{pred: predicate.And(predicate.Name("a"), remoteOnly{})}

	_, err := q.Match(types.NewProjectData(types.Project{Name: "a"}, nil))
	assert.ErrorIs(t, err, predicate.ErrNotMatchable)
}

func TestString(t *testing.T) {
	f := newFixture(t, schema.V5)
	q, err := NewIndexRewriter(f.indexes, f.cache).Rewrite(predicate.Name("acme"), index.QueryOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "index(v5, name=acme, start=0, limit=10)", q.String())
}
