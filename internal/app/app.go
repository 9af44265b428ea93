package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/internal/config"
	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/indexer"
	"github.com/dshills/projectindex/internal/predicate"
	"github.com/dshills/projectindex/internal/projectstore"
	"github.com/dshills/projectindex/internal/query"
	"github.com/dshills/projectindex/internal/schema"
	"github.com/dshills/projectindex/internal/staleness"
	"github.com/dshills/projectindex/internal/storage"
	"github.com/dshills/projectindex/internal/watcher"
	"github.com/dshills/projectindex/pkg/types"
)

const progressInterval = 5 * time.Second

// App holds the wired components of the service
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Storage *storage.SQLiteStorage
	Store   *projectstore.Store
	Cache   *cache.ProjectCache
	Indexes *index.Collection

	Notifier *indexer.Notifier
	Indexer  *indexer.ProjectIndexer
	Batch    *indexer.AllProjectsIndexer
	Online   *indexer.OnlineReindexer
	Checker  *staleness.Checker
	Rewriter *query.IndexRewriter
}

// New opens the database and project store named by cfg and wires every
// component. The search index is cfg.Index.SearchVersion when set, else the
// highest configured write version marked ready, else none.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	store := projectstore.New(cfg.ProjectsRoot)
	projects, err := cache.New(store, cfg.Cache.Size)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Storage:  db,
		Store:    store,
		Cache:    projects,
		Indexes:  index.NewCollection(),
		Notifier: indexer.NewNotifier(logger),
	}

	if err := a.openIndexes(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	a.Indexer = indexer.New(projects, a.Indexes, a.Notifier, logger)
	a.Batch = indexer.NewAllProjectsIndexer(projects, a.Indexes, &indexer.Config{Workers: cfg.Reindex.Workers}, logger)
	a.Batch.SetProgress(&indexer.LogProgress{Logger: logger, Interval: progressInterval})
	a.Online = indexer.NewOnlineReindexer(a.Indexes, a.Batch, db, logger)
	a.Checker = staleness.NewChecker(projects, a.Indexes, logger)
	a.Rewriter = query.NewIndexRewriter(a.Indexes, projects)

	if cfg.Index.ReindexStaleDescendants {
		a.Notifier.Add(staleness.NewReindexIfStale(a.Checker, a.Indexes, a.Indexer, logger))
	}
	return a, nil
}

func (a *App) openIndexes(ctx context.Context) error {
	for _, version := range a.Config.Index.WriteVersions {
		idx, err := a.OpenVersion(ctx, version)
		if err != nil {
			return err
		}
		a.Indexes.AddWriteIndex(idx)
	}

	if v := a.Config.Index.SearchVersion; v != 0 {
		idx, _ := a.Indexes.WriteIndex(v)
		a.Indexes.SetSearchIndex(idx)
		return nil
	}

	versions, err := a.Storage.ListVersions(ctx)
	if err != nil {
		return err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].Ready {
			continue
		}
		if idx, ok := a.Indexes.WriteIndex(versions[i].Version); ok {
			a.Indexes.SetSearchIndex(idx)
			break
		}
	}
	if a.Indexes.SearchIndex() == nil {
		a.Logger.Warn("no ready index version; searches are disabled until a reindex completes")
	}
	return nil
}

// OpenVersion opens the index of a schema version without adding it to the
// collection
func (a *App) OpenVersion(ctx context.Context, version int) (*storage.ProjectIndex, error) {
	sch, err := schema.Get(version)
	if err != nil {
		return nil, err
	}
	return a.Storage.OpenIndex(ctx, sch)
}

// Close releases the database
func (a *App) Close() error {
	return a.Storage.Close()
}

// Search parses a query string and returns matching projects in name order.
// Results are re-checked against the current project state.
func (a *App) Search(ctx context.Context, q string, start, limit int) ([]*types.ProjectData, error) {
	pred, err := predicate.Parse(q)
	if err != nil {
		return nil, err
	}
	iq, err := a.Rewriter.Rewrite(pred, index.QueryOptions{Start: start, Limit: limit})
	if err != nil {
		return nil, err
	}
	return iq.ReadChecked(ctx)
}

// Activate rebuilds a schema version and switches searches to it when the
// rebuild succeeds
func (a *App) Activate(ctx context.Context, version int) (indexer.Result, error) {
	idx, err := a.OpenVersion(ctx, version)
	if err != nil {
		return indexer.Result{}, err
	}
	return a.Online.Activate(ctx, idx)
}

// Reindex rebuilds a write version; 0 selects the search index version or,
// without one, the newest write version. A successful rebuild enables
// searches when no search index was ready.
func (a *App) Reindex(ctx context.Context, version int) (indexer.Result, error) {
	if version == 0 {
		version = a.defaultVersion()
	}
	if version == 0 {
		return indexer.Result{}, index.ErrNoWriteIndex
	}
	result, err := a.Online.Reindex(ctx, version)
	if err != nil || !result.Success {
		return result, err
	}
	if a.Indexes.SearchIndex() == nil {
		idx, _ := a.Indexes.WriteIndex(version)
		a.Indexes.SetSearchIndex(idx)
		a.Logger.Info("searches enabled", "version", version)
	}
	return result, nil
}

func (a *App) defaultVersion() int {
	if idx := a.Indexes.SearchIndex(); idx != nil {
		return idx.Schema().Version
	}
	writes := a.Indexes.WriteIndexes()
	if len(writes) == 0 {
		return 0
	}
	return writes[len(writes)-1].Schema().Version
}

// NewWatcher creates a watcher feeding project edits to the indexer
func (a *App) NewWatcher() (*watcher.Watcher, error) {
	return watcher.New(a.Store, a.Cache, a.Indexer, a.Config.Watch.Debounce, a.Logger)
}

// VersionStatus describes one index version
type VersionStatus struct {
	Version       int    `json:"version"`
	Ready         bool   `json:"ready"`
	Write         bool   `json:"write"`
	Search        bool   `json:"search"`
	Documents     int    `json:"documents"`
	LastReindexAt string `json:"last_reindex_at,omitempty"`
	LastReindexOK bool   `json:"last_reindex_ok"`
}

// Status is a snapshot of the service state
type Status struct {
	Projects   int             `json:"projects"`
	Versions   []VersionStatus `json:"versions"`
	Reindexing bool            `json:"reindexing"`
	BuildMode  string          `json:"build_mode"`
	Driver     string          `json:"driver"`
}

// Status reports every cataloged index version
func (a *App) Status(ctx context.Context) (*Status, error) {
	names, err := a.Cache.All(ctx)
	if err != nil {
		return nil, err
	}
	versions, err := a.Storage.ListVersions(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Projects:   len(names),
		Reindexing: a.Online.Running(),
		BuildMode:  storage.BuildMode,
		Driver:     storage.DriverName,
	}
	search := a.Indexes.SearchIndex()
	for _, v := range versions {
		vs := VersionStatus{Version: v.Version, Ready: v.Ready, LastReindexOK: v.LastReindexOK}
		if !v.LastReindexAt.IsZero() {
			vs.LastReindexAt = v.LastReindexAt.UTC().Format(time.RFC3339)
		}
		_, vs.Write = a.Indexes.WriteIndex(v.Version)
		vs.Search = search != nil && search.Schema().Version == v.Version

		idx, err := a.OpenVersion(ctx, v.Version)
		if err != nil {
			return nil, err
		}
		if vs.Documents, err = idx.Count(ctx); err != nil {
			return nil, err
		}
		status.Versions = append(status.Versions, vs)
	}
	return status, nil
}
