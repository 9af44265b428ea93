package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/projectindex/internal/index"
)

// ErrReindexRunning is returned when a full reindex is already in progress
var ErrReindexRunning = errors.New("reindex already in progress")

// VersionCatalog persists per-version readiness
type VersionCatalog interface {
	SetReady(ctx context.Context, version int, ready bool) error
	RecordReindex(ctx context.Context, version int, ok bool) error
}

// OnlineReindexer runs full rebuilds while the service keeps serving, and
// switches searches to a new schema version once it is completely built
type OnlineReindexer struct {
	indexes *index.Collection
	batch   *AllProjectsIndexer
	catalog VersionCatalog
	logger  *slog.Logger
	lock    RunLock
}

// NewOnlineReindexer creates an online reindexer
func NewOnlineReindexer(indexes *index.Collection, batch *AllProjectsIndexer, catalog VersionCatalog, logger *slog.Logger) *OnlineReindexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnlineReindexer{indexes: indexes, batch: batch, catalog: catalog, logger: logger}
}

// Running reports whether a rebuild is in progress
func (o *OnlineReindexer) Running() bool {
	return o.lock.Running()
}

// Reindex rebuilds an existing write index. A fully successful run marks
// the version ready.
func (o *OnlineReindexer) Reindex(ctx context.Context, version int) (Result, error) {
	if !o.lock.TryAcquire() {
		return Result{}, ErrReindexRunning
	}
	defer o.lock.Release()

	target, ok := o.indexes.WriteIndex(version)
	if !ok {
		return Result{}, fmt.Errorf("%w: version %d", index.ErrNoWriteIndex, version)
	}

	result := o.batch.Reindex(ctx, target)
	if err := o.record(ctx, version, result.Success); err != nil {
		return result, err
	}
	return result, nil
}

// Activate migrates searches to target. The target becomes a write index
// first so it receives concurrent updates during the rebuild. Only a fully
// successful rebuild makes it the search index and retires older write
// versions; otherwise it stays a write index and searches are unaffected.
func (o *OnlineReindexer) Activate(ctx context.Context, target index.Index) (Result, error) {
	if !o.lock.TryAcquire() {
		return Result{}, ErrReindexRunning
	}
	defer o.lock.Release()

	version := target.Schema().Version
	o.indexes.AddWriteIndex(target)
	if err := o.catalog.SetReady(ctx, version, false); err != nil {
		return Result{}, err
	}

	result := o.batch.Reindex(ctx, target)
	if err := o.record(ctx, version, result.Success); err != nil {
		return result, err
	}
	if !result.Success {
		o.logger.Warn("index version not activated",
			"version", version,
			"done", result.Done,
			"failed", result.Failed)
		return result, nil
	}

	o.indexes.SetSearchIndex(target)
	for _, idx := range o.indexes.WriteIndexes() {
		if v := idx.Schema().Version; v < version {
			o.indexes.RemoveWriteIndex(v)
			o.logger.Info("retired index version", "version", v)
		}
	}
	o.logger.Info("index version activated", "version", version)
	return result, nil
}

func (o *OnlineReindexer) record(ctx context.Context, version int, ok bool) error {
	if err := o.catalog.RecordReindex(ctx, version, ok); err != nil {
		return fmt.Errorf("failed to record reindex of v%d: %w", version, err)
	}
	if !ok {
		return nil
	}
	if err := o.catalog.SetReady(ctx, version, true); err != nil {
		return fmt.Errorf("failed to mark v%d ready: %w", version, err)
	}
	return nil
}
