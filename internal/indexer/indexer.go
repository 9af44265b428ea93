package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/internal/index"
)

// ProjectIndexer keeps single projects up to date in the index. It writes
// either to every write index of a collection or to one fixed index.
type ProjectIndexer struct {
	cache    *cache.ProjectCache
	indexes  *index.Collection
	target   index.Index
	notifier *Notifier
	logger   *slog.Logger
}

// New creates an indexer that writes to every write index of indexes
func New(projects *cache.ProjectCache, indexes *index.Collection, notifier *Notifier, logger *slog.Logger) *ProjectIndexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectIndexer{cache: projects, indexes: indexes, notifier: notifier, logger: logger}
}

// NewFor creates an indexer bound to a single index
func NewFor(projects *cache.ProjectCache, target index.Index, notifier *Notifier, logger *slog.Logger) *ProjectIndexer {
	p := New(projects, nil, notifier, logger)
	p.target = target
	return p
}

func (p *ProjectIndexer) targets() []index.Index {
	if p.target != nil {
		return []index.Index{p.target}
	}
	return p.indexes.WriteIndexes()
}

// Index brings the named project's document up to date in every target.
// A project the cache no longer knows is deleted instead. Listeners are
// notified only after a successful replace.
//
// Writes to several targets are not atomic; on error some targets may
// already hold the new document. Retrying the call is always safe.
func (p *ProjectIndexer) Index(ctx context.Context, name string) (err error) {
	ctx, span := tracer.Start(ctx, "ProjectIndexer.Index",
		trace.WithAttributes(attribute.String("project", name)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	state, ok, err := p.cache.Get(ctx, name)
	if err != nil {
		OperationsTotal.WithLabelValues("replace", "error").Inc()
		return err
	}
	if !ok {
		err = p.delete(ctx, name)
		OperationsTotal.WithLabelValues("delete", outcome(err)).Inc()
		return err
	}

	pd, err := state.ToProjectData(ctx)
	if err != nil {
		OperationsTotal.WithLabelValues("replace", "error").Inc()
		return fmt.Errorf("failed to resolve project %s: %w", name, err)
	}

	for _, idx := range p.targets() {
		if err := idx.Replace(ctx, pd); err != nil {
			OperationsTotal.WithLabelValues("replace", "error").Inc()
			return fmt.Errorf("failed to index project %s in v%d: %w", name, idx.Schema().Version, err)
		}
	}
	OperationsTotal.WithLabelValues("replace", "ok").Inc()
	p.logger.Debug("project indexed", "project", name)

	p.notifier.Notify(ctx, name)
	return nil
}

func (p *ProjectIndexer) delete(ctx context.Context, name string) error {
	for _, idx := range p.targets() {
		if err := idx.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to delete project %s from v%d: %w", name, idx.Schema().Version, err)
		}
	}
	p.logger.Debug("project removed from index", "project", name)
	return nil
}
