package staleness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/indexer"
	"github.com/dshills/projectindex/internal/predicate"
)

// Reindexer writes one project to the index
type Reindexer interface {
	Index(ctx context.Context, name string) error
}

// ReindexIfStale is an indexer.Listener that, whenever a project is
// indexed, checks every descendant of it and reindexes the stale ones.
// Descendants embed their ancestors' ref states, so a change to a parent
// leaves every descendant stale.
type ReindexIfStale struct {
	checker   *Checker
	indexes   *index.Collection
	reindexer Reindexer
	logger    *slog.Logger
}

var _ indexer.Listener = (*ReindexIfStale)(nil)

// NewReindexIfStale creates the descendant listener
func NewReindexIfStale(checker *Checker, indexes *index.Collection, reindexer Reindexer, logger *slog.Logger) *ReindexIfStale {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReindexIfStale{checker: checker, indexes: indexes, reindexer: reindexer, logger: logger}
}

// OnProjectIndexed checks the descendants of name. Reindexing a descendant
// fires this listener again for it, so deeper levels are handled by
// recursion through the notifier.
func (r *ReindexIfStale) OnProjectIndexed(ctx context.Context, name string) error {
	idx := r.indexes.SearchIndex()
	if idx == nil {
		return nil
	}

	children, err := idx.Search(ctx, predicate.Parent(name), index.QueryOptions{})
	if err != nil {
		return fmt.Errorf("failed to find children of %s: %w", name, err)
	}

	var errs []error
	for _, child := range children {
		result, err := r.checker.Check(ctx, child)
		if errors.Is(err, ErrIllegalState) {
			// Deleted since it was indexed; let the indexer drop it
			result.Stale = true
		} else if err != nil {
			errs = append(errs, err)
			continue
		}
		if !result.Stale {
			continue
		}
		r.logger.Info("reindexing stale descendant", "project", child, "ancestor", name)
		if err := r.reindexer.Index(ctx, child); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
