package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectindex/internal/schema"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)

	assert.NotNil(t, storage.db)
	assert.Empty(t, storage.indexes)
}

func TestClose(t *testing.T) {
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	assert.NoError(t, storage.Close())
}

func TestOpenIndex_CreatesCatalogEntry(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	idx, err := storage.OpenIndex(ctx, schema.V4)
	require.NoError(t, err)
	assert.Same(t, schema.V4, idx.Schema())

	again, err := storage.OpenIndex(ctx, schema.V4)
	require.NoError(t, err)
	assert.Same(t, idx, again, "indexes are opened once per version")

	info, err := storage.GetVersion(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Version)
	assert.False(t, info.Ready, "new versions start out not ready")
	assert.True(t, info.LastReindexAt.IsZero())
}

func TestSetReady(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.OpenIndex(ctx, schema.V4)
	require.NoError(t, err)
	_, err = storage.OpenIndex(ctx, schema.V5)
	require.NoError(t, err)

	require.NoError(t, storage.SetReady(ctx, 5, true))

	versions, err := storage.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 4, versions[0].Version)
	assert.False(t, versions[0].Ready)
	assert.Equal(t, 5, versions[1].Version)
	assert.True(t, versions[1].Ready)

	err = storage.SetReady(ctx, 9, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordReindex(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.OpenIndex(ctx, schema.V5)
	require.NoError(t, err)

	require.NoError(t, storage.RecordReindex(ctx, 5, true))

	info, err := storage.GetVersion(ctx, 5)
	require.NoError(t, err)
	assert.True(t, info.LastReindexOK)
	assert.False(t, info.LastReindexAt.IsZero())

	assert.ErrorIs(t, storage.RecordReindex(ctx, 4, true), ErrNotFound)
}

func TestGetVersion_NotFound(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.GetVersion(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)
}
