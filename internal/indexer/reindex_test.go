package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/predicate"
	"github.com/dshills/projectindex/internal/testutil"
	"github.com/dshills/projectindex/pkg/types"
)

func manyProjects(n int) []types.Project {
	projects := []types.Project{{Name: "root", ConfigHash: "r0"}}
	for i := 1; i < n; i++ {
		projects = append(projects, types.Project{
			Name:       fmt.Sprintf("root/p%02d", i),
			Parent:     "root",
			ConfigHash: fmt.Sprintf("h%02d", i),
		})
	}
	return projects
}

type recordingProgress struct {
	mu       sync.Mutex
	total    int
	updates  int
	finished *Result
}

func (p *recordingProgress) Start(_ string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

func (p *recordingProgress) Update(int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates++
}

func (p *recordingProgress) Finish(r Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = &r
}

func TestReindex_AllSucceed(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			defer verifyNoLeaks(t, goleak.IgnoreCurrent())

			env := newTestEnv(t, manyProjects(10)...)
			batch := NewAllProjectsIndexer(env.cache, env.indexes, &Config{Workers: workers}, nil)
			progress := &recordingProgress{}
			batch.SetProgress(progress)

			result := batch.Reindex(context.Background(), env.v5)

			assert.True(t, result.Success)
			assert.Equal(t, 10, result.Done)
			assert.Zero(t, result.Failed)
			assert.Equal(t, 5, result.Version)
			assert.NotEmpty(t, result.RunID)
			assert.Positive(t, result.Elapsed)

			assert.Len(t, search(t, env.v5, predicate.Any()), 10)
			assert.Empty(t, search(t, env.v4, predicate.Any()), "only the target is written")

			assert.Equal(t, UnknownTotal, progress.total)
			assert.Equal(t, 10, progress.updates)
			require.NotNil(t, progress.finished)
			assert.Equal(t, result, *progress.finished)
		})
	}
}

func TestReindex_OneFailure(t *testing.T) {
	defer verifyNoLeaks(t, goleak.IgnoreCurrent())

	env := newTestEnv(t, manyProjects(8)...)
	env.loader.Fail("root/p03", errors.New("unreadable config"))
	batch := NewAllProjectsIndexer(env.cache, env.indexes, &Config{Workers: 3}, nil)

	result := batch.Reindex(context.Background(), env.v4)

	assert.False(t, result.Success)
	assert.Equal(t, 7, result.Done)
	assert.Equal(t, 1, result.Failed)

	names := search(t, env.v4, predicate.Any())
	assert.Len(t, names, 7)
	assert.NotContains(t, names, "root/p03")
}

func TestReindex_ReadsFreshState(t *testing.T) {
	env := newTestEnv(t, types.Project{Name: "solo", ConfigHash: "old"})
	ctx := context.Background()

	// Warm the cache with the old snapshot
	_, _, err := env.cache.Get(ctx, "solo")
	require.NoError(t, err)
	env.loader.SetHash("solo", "new")

	result := NewAllProjectsIndexer(env.cache, env.indexes, nil, nil).Reindex(ctx, env.v4)
	require.True(t, result.Success)

	states, found := rawRefStates(t, env.v4, "solo")
	require.True(t, found)
	assert.Contains(t, states["solo"], types.RefState{Project: "solo", Ref: types.RefsConfig, Hash: "new"})
}

// vanishingLoader lists projects that can no longer be loaded
type vanishingLoader struct {
	*testutil.MemoryLoader
	ghosts []string
}

func (l *vanishingLoader) List(ctx context.Context) ([]string, error) {
	names, err := l.MemoryLoader.List(ctx)
	return append(names, l.ghosts...), err
}

func TestReindex_VanishedProjectIsNoop(t *testing.T) {
	env := newTestEnv(t)
	loader := &vanishingLoader{
		MemoryLoader: testutil.NewMemoryLoader(types.Project{Name: "real"}),
		ghosts:       []string{"ghost"},
	}
	projects := testutil.NewCache(t, loader)

	result := NewAllProjectsIndexer(projects, env.indexes, nil, nil).Reindex(context.Background(), env.v4)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Done)
	assert.Equal(t, []string{"real"}, search(t, env.v4, predicate.Any()))
}

func TestReindex_Interrupted(t *testing.T) {
	defer verifyNoLeaks(t, goleak.IgnoreCurrent())

	env := newTestEnv(t, manyProjects(5)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewAllProjectsIndexer(env.cache, env.indexes, nil, nil).Reindex(ctx, env.v4)

	assert.False(t, result.Success)
	assert.Zero(t, result.Done)
	assert.Zero(t, result.Failed)
}

// blockingLoader holds every Load until release is closed
type blockingLoader struct {
	*testutil.MemoryLoader
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *blockingLoader) Load(ctx context.Context, name string) (*types.Project, error) {
	l.once.Do(func() { close(l.started) })
	<-l.release
	return l.MemoryLoader.Load(ctx, name)
}

func TestReindex_InterruptedWhileUnitsRun(t *testing.T) {
	env := newTestEnv(t)
	loader := &blockingLoader{
		MemoryLoader: testutil.NewMemoryLoader(manyProjects(3)...),
		started:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	projects := testutil.NewCache(t, loader)
	defer verifyNoLeaks(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-loader.started
		cancel()
	}()

	batch := NewAllProjectsIndexer(projects, env.indexes, &Config{Workers: 1}, nil)
	result := batch.Reindex(ctx, env.v4)
	close(loader.release)

	assert.False(t, result.Success)
	assert.Zero(t, result.Done)
	assert.Zero(t, result.Failed)
	assert.NotEmpty(t, result.RunID)
}

func TestReindex_ListFailure(t *testing.T) {
	env := newTestEnv(t, manyProjects(3)...)
	env.loader.FailList(errors.New("listing failed"))

	result := NewAllProjectsIndexer(env.cache, env.indexes, nil, nil).Reindex(context.Background(), env.v4)

	assert.False(t, result.Success)
	assert.Zero(t, result.Done)
}

func TestReindexVersion(t *testing.T) {
	env := newTestEnv(t, manyProjects(3)...)
	batch := NewAllProjectsIndexer(env.cache, env.indexes, nil, nil)

	result, err := batch.ReindexVersion(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Done)

	_, err = batch.ReindexVersion(context.Background(), 9)
	assert.ErrorIs(t, err, index.ErrNoWriteIndex)
}
