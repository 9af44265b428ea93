package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/schema"
	"github.com/dshills/projectindex/internal/storage"
	"github.com/dshills/projectindex/pkg/types"
)

// OpenStorage opens an in-memory SQLite database closed at test end
func OpenStorage(t testing.TB) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// OpenIndex opens one schema version in s
func OpenIndex(t testing.TB, s *storage.SQLiteStorage, sch *schema.Schema) *storage.ProjectIndex {
	t.Helper()
	idx, err := s.OpenIndex(context.Background(), sch)
	require.NoError(t, err)
	return idx
}

// NewCache creates a project cache over loader
func NewCache(t testing.TB, loader cache.Loader) *cache.ProjectCache {
	t.Helper()
	c, err := cache.New(loader, 0)
	require.NoError(t, err)
	return c
}

// FlakyIndex wraps an index and fails writes for selected project names
type FlakyIndex struct {
	index.Index

	mu    sync.Mutex
	fails map[string]error
}

// NewFlakyIndex wraps idx
func NewFlakyIndex(idx index.Index) *FlakyIndex {
	return &FlakyIndex{Index: idx, fails: make(map[string]error)}
}

// Fail makes writes for name return err; nil clears it
func (f *FlakyIndex) Fail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fails, name)
		return
	}
	f.fails[name] = err
}

func (f *FlakyIndex) failure(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fails[name]
}

func (f *FlakyIndex) Replace(ctx context.Context, pd *types.ProjectData) error {
	if err := f.failure(pd.Name()); err != nil {
		return err
	}
	return f.Index.Replace(ctx, pd)
}

func (f *FlakyIndex) Delete(ctx context.Context, name string) error {
	if err := f.failure(name); err != nil {
		return err
	}
	return f.Index.Delete(ctx, name)
}
