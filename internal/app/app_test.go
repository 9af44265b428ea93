package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/projectindex/internal/config"
	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/predicate"
	"github.com/dshills/projectindex/internal/projectstore"
	"github.com/dshills/projectindex/pkg/types"
)

func verifyNoLeaks(t *testing.T) {
	goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func testConfig(t *testing.T, versions ...int) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(dir, "db", "index.db")
	cfg.ProjectsRoot = filepath.Join(dir, "projects")
	cfg.Reindex.Workers = 2
	if len(versions) > 0 {
		cfg.Index.WriteVersions = versions
	}
	return cfg
}

func seed(t *testing.T, cfg *config.Config) {
	t.Helper()
	store := projectstore.New(cfg.ProjectsRoot)
	ctx := context.Background()
	for _, p := range []types.Project{
		{Name: "acme", Description: "Acme umbrella"},
		{Name: "acme/core", Description: "Core services", Parent: "acme"},
		{Name: "acme/core/api", Description: "Public API", Parent: "acme/core"},
		{Name: "legacy", Description: "Old code", State: types.StateHidden},
	} {
		_, err := store.Save(ctx, p)
		require.NoError(t, err)
	}
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_NoReadyVersion(t *testing.T) {
	cfg := testConfig(t)
	a := newApp(t, cfg)

	assert.Nil(t, a.Indexes.SearchIndex())
	assert.Len(t, a.Indexes.WriteIndexes(), 1)

	_, err := a.Search(context.Background(), "acme", 0, 10)
	assert.ErrorIs(t, err, index.ErrNoSearchIndex)
}

func TestReindex_EnablesSearch(t *testing.T) {
	defer verifyNoLeaks(t)
	cfg := testConfig(t)
	seed(t, cfg)
	a := newApp(t, cfg)
	ctx := context.Background()

	result, err := a.Reindex(ctx, 0)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Done)

	require.NotNil(t, a.Indexes.SearchIndex())
	assert.Equal(t, 5, a.Indexes.SearchIndex().Schema().Version)

	got, err := a.Search(ctx, "ancestor:acme", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/core", "acme/core/api"}, names(got))

	got, err = a.Search(ctx, "state:hidden", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy"}, names(got))
}

func TestNew_PicksReadyVersion(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)
	ctx := context.Background()

	first, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = first.Reindex(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	a := newApp(t, cfg)
	require.NotNil(t, a.Indexes.SearchIndex())
	assert.Equal(t, 5, a.Indexes.SearchIndex().Schema().Version)

	got, err := a.Search(ctx, "name:acme/core", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/core"}, names(got))
}

func TestNew_ExplicitSearchVersion(t *testing.T) {
	cfg := testConfig(t, 4, 5)
	cfg.Index.SearchVersion = 4
	a := newApp(t, cfg)

	require.NotNil(t, a.Indexes.SearchIndex())
	assert.Equal(t, 4, a.Indexes.SearchIndex().Schema().Version)
}

func TestSearch_BadQuery(t *testing.T) {
	cfg := testConfig(t)
	a := newApp(t, cfg)

	_, err := a.Search(context.Background(), "bogus:x", 0, 10)
	assert.ErrorIs(t, err, predicate.ErrBadQuery)
}

func TestActivate(t *testing.T) {
	cfg := testConfig(t, 4)
	seed(t, cfg)
	a := newApp(t, cfg)
	ctx := context.Background()

	_, err := a.Reindex(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Indexes.SearchIndex().Schema().Version)

	result, err := a.Activate(ctx, 5)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 5, a.Indexes.SearchIndex().Schema().Version)
	_, ok := a.Indexes.WriteIndex(4)
	assert.False(t, ok, "older version retired")

	_, err = a.Activate(ctx, 9)
	assert.Error(t, err)
}

func TestIndexerUpdatesSearch(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)
	a := newApp(t, cfg)
	ctx := context.Background()

	_, err := a.Reindex(ctx, 0)
	require.NoError(t, err)

	_, err = a.Store.Save(ctx, types.Project{Name: "acme/web", Description: "Storefront", Parent: "acme"})
	require.NoError(t, err)
	a.Cache.Evict("acme/web")
	require.NoError(t, a.Indexer.Index(ctx, "acme/web"))

	got, err := a.Search(ctx, "parent:acme", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/core", "acme/web"}, names(got))
}

func TestCheck_SeesStoreEditsWithoutWatcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.Enabled = false
	seed(t, cfg)
	a := newApp(t, cfg)
	ctx := context.Background()

	_, err := a.Reindex(ctx, 0)
	require.NoError(t, err)

	result, err := a.Checker.Check(ctx, "acme/core")
	require.NoError(t, err)
	require.False(t, result.Stale)

	_, err = a.Store.Save(ctx, types.Project{Name: "acme", Description: "Acme holdings"})
	require.NoError(t, err)
	result, err = a.Checker.Check(ctx, "acme/core")
	require.NoError(t, err)
	assert.True(t, result.Stale, "parent edit on disk")

	require.NoError(t, a.Indexer.Index(ctx, "acme/core"))
	result, err = a.Checker.Check(ctx, "acme/core")
	require.NoError(t, err)
	require.False(t, result.Stale)

	_, err = a.Store.Save(ctx, types.Project{Name: "acme/core", Description: "Core platform", Parent: "acme"})
	require.NoError(t, err)
	result, err = a.Checker.Check(ctx, "acme/core")
	require.NoError(t, err)
	assert.True(t, result.Stale, "own edit on disk")
}

func TestStatus(t *testing.T) {
	cfg := testConfig(t, 4, 5)
	seed(t, cfg)
	a := newApp(t, cfg)
	ctx := context.Background()

	_, err := a.Reindex(ctx, 5)
	require.NoError(t, err)

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Projects)
	assert.False(t, status.Reindexing)
	assert.NotEmpty(t, status.Driver)
	require.Len(t, status.Versions, 2)

	v4, v5 := status.Versions[0], status.Versions[1]
	assert.Equal(t, 4, v4.Version)
	assert.False(t, v4.Ready)
	assert.True(t, v4.Write)
	assert.False(t, v4.Search)

	assert.Equal(t, 5, v5.Version)
	assert.True(t, v5.Ready)
	assert.True(t, v5.Search)
	assert.True(t, v5.LastReindexOK)
	assert.NotEmpty(t, v5.LastReindexAt)
	assert.Equal(t, 4, v5.Documents)
}

func names(pds []*types.ProjectData) []string {
	out := make([]string, 0, len(pds))
	for _, pd := range pds {
		out = append(out, pd.Name())
	}
	return out
}
