package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/internal/index"
)

// Result summarizes a batch reindex. Done+Failed may be less than the number
// of known projects when the run was interrupted.
type Result struct {
	RunID   string
	Version int
	Elapsed time.Duration
	Success bool
	Done    int
	Failed  int
}

// Config contains configuration for the batch reindexer
type Config struct {
	Workers int // Number of concurrent units (default: runtime.NumCPU())
}

// AllProjectsIndexer rebuilds one index version from every known project
type AllProjectsIndexer struct {
	cache    *cache.ProjectCache
	indexes  *index.Collection
	workers  int
	logger   *slog.Logger
	progress Progress
}

// NewAllProjectsIndexer creates a batch reindexer. indexes is only used to
// resolve versions in ReindexVersion.
func NewAllProjectsIndexer(projects *cache.ProjectCache, indexes *index.Collection, config *Config, logger *slog.Logger) *AllProjectsIndexer {
	workers := runtime.NumCPU()
	if config != nil && config.Workers > 0 {
		workers = config.Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AllProjectsIndexer{
		cache:    projects,
		indexes:  indexes,
		workers:  workers,
		logger:   logger,
		progress: noProgress{},
	}
}

// SetProgress installs a progress sink; nil disables reporting
func (a *AllProjectsIndexer) SetProgress(p Progress) {
	if p == nil {
		p = noProgress{}
	}
	a.progress = p
}

// ReindexVersion rebuilds the write index of the given schema version
func (a *AllProjectsIndexer) ReindexVersion(ctx context.Context, version int) (Result, error) {
	target, ok := a.indexes.WriteIndex(version)
	if !ok {
		return Result{}, fmt.Errorf("%w: version %d", index.ErrNoWriteIndex, version)
	}
	return a.Reindex(ctx, target), nil
}

// Reindex writes every known project to target. Failing projects are
// logged and counted; they never stop the run. Only an interrupted wait
// (ctx done) fails the run as a whole, with zero progress reported.
func (a *AllProjectsIndexer) Reindex(ctx context.Context, target index.Index) Result {
	start := time.Now()
	version := target.Schema().Version
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID, "version", version)

	ctx, span := tracer.Start(ctx, "AllProjectsIndexer.Reindex",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.Int("version", version),
			attribute.Int("workers", a.workers),
		))
	defer span.End()

	result := Result{RunID: runID, Version: version}
	finish := func() Result {
		result.Elapsed = time.Since(start)
		ReindexDuration.WithLabelValues(strconv.Itoa(version), strconv.FormatBool(result.Success)).
			Observe(result.Elapsed.Seconds())
		if result.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, "reindex failed")
		}
		a.progress.Finish(result)
		logger.Info("reindex finished",
			"done", result.Done,
			"failed", result.Failed,
			"ok", result.Success,
			"elapsed", result.Elapsed)
		return result
	}

	logger.Info("reindex started", "workers", a.workers)
	a.progress.Start(fmt.Sprintf("Reindexing projects into v%d", version), UnknownTotal)

	names, err := a.cache.All(ctx)
	if err != nil {
		logger.Error("failed to list projects", "error", err)
		span.RecordError(err)
		return finish()
	}

	var (
		done   atomic.Int32
		failed atomic.Int32
		ok     atomic.Bool
	)
	ok.Store(true)

	// A plain group: one failing unit must not cancel the others
	var g errgroup.Group
	g.SetLimit(a.workers)

	// Dispatch runs beside the wait so an interruption is seen even while
	// g.Go blocks on the worker limit
	waited := make(chan error, 1)
	go func() {
		for _, name := range names {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := a.reindexProject(ctx, target, name); err != nil {
					failed.Add(1)
					ok.Store(false)
					ReindexUnitsTotal.WithLabelValues("error").Inc()
					logger.Error("failed to reindex project", "project", name, "error", err)
					a.progress.Update(int(done.Load()), int(failed.Load()))
					return fmt.Errorf("project %s: %w", name, err)
				}
				done.Add(1)
				ReindexUnitsTotal.WithLabelValues("ok").Inc()
				a.progress.Update(int(done.Load()), int(failed.Load()))
				return nil
			})
		}

		waited <- g.Wait()
	}()

	select {
	case <-waited:
		// Unit errors are already counted
	case <-ctx.Done():
		logger.Error("interrupted waiting for reindex units", "error", ctx.Err())
		span.RecordError(ctx.Err())
		return finish()
	}

	if ctx.Err() != nil {
		logger.Error("reindex interrupted", "error", ctx.Err())
		span.RecordError(ctx.Err())
		return finish()
	}

	result.Done = int(done.Load())
	result.Failed = int(failed.Load())
	result.Success = ok.Load()
	return finish()
}

// reindexProject reads one project fresh and writes it to target. A project
// that vanished since it was listed is skipped.
func (a *AllProjectsIndexer) reindexProject(ctx context.Context, target index.Index, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.cache.Evict(name)
	state, ok, err := a.cache.Get(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	pd, err := state.ToProjectData(ctx)
	if err != nil {
		return err
	}
	return target.Replace(ctx, pd)
}
