package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/projectindex/internal/projectstore"
)

// DefaultDebounce is the quiet period used when none is configured
const DefaultDebounce = 250 * time.Millisecond

// Indexer updates one project in the index
type Indexer interface {
	Index(ctx context.Context, name string) error
}

// Evicter drops a cached project
type Evicter interface {
	Evict(name string)
}

// Watcher reindexes projects whose config files change on disk. Changes are
// collected until the directory has been quiet for the debounce period, then
// every changed project is evicted from the cache and indexed.
type Watcher struct {
	store    *projectstore.Store
	cache    Evicter
	indexer  Indexer
	debounce time.Duration
	logger   *slog.Logger

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	flushes int
	errors  int
}

// New creates a watcher for the store's root directory
func New(store *projectstore.Store, projects Evicter, idx Indexer, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		store:    store,
		cache:    projects,
		indexer:  idx,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
	}, nil
}

// Start watches every directory under the root and begins processing events
func (w *Watcher) Start(ctx context.Context) error {
	root := w.store.Root()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create projects root: %w", err)
	}
	if _, err := w.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("watching project configs", "root", root, "debounce", w.debounce)
	return nil
}

// Stop ends event processing and releases the watches. Pending changes are
// dropped.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// Stats returns how many batches were flushed and how many index calls failed
func (w *Watcher) Stats() (flushes, errs int) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.flushes, w.errors
}

// addWatches watches dir and its subdirectories and returns the projects
// already present below it
func (w *Watcher) addWatches(dir string) ([]string, error) {
	var names []string
	visited := make(map[string]bool)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !d.IsDir() {
			if name, ok := w.store.NameForPath(path); ok {
				names = append(names, name)
			}
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil || visited[realPath] {
			return filepath.SkipDir
		}
		visited[realPath] = true

		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to add watch", "dir", path, "error", err)
		}
		return nil
	})
	return names, err
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			names := w.handleEvent(event)
			if len(names) == 0 {
				continue
			}
			for _, name := range names {
				pending[name] = struct{}{}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			w.flush(ctx, pending)
			pending = make(map[string]struct{})
		}
	}
}

// handleEvent returns the projects affected by one file system event
func (w *Watcher) handleEvent(event fsnotify.Event) []string {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return nil
	}

	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			// Files may land in a new directory before its watch exists
			names, err := w.addWatches(event.Name)
			if err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return names
		}
	}

	if name, ok := w.store.NameForPath(event.Name); ok {
		return []string{name}
	}
	return nil
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	slices.Sort(names)

	failed := 0
	for _, name := range names {
		w.cache.Evict(name)
		if err := w.indexer.Index(ctx, name); err != nil {
			w.logger.Error("failed to index changed project", "project", name, "error", err)
			failed++
		}
	}

	w.statsMu.Lock()
	w.flushes++
	w.errors += failed
	w.statsMu.Unlock()

	w.logger.Debug("indexed changed projects", "count", len(names), "failed", failed)
}
