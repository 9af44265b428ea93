package query

import (
	"context"
	"fmt"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/predicate"
	"github.com/dshills/projectindex/pkg/types"
)

// IndexRewriter binds predicates to the current search index
type IndexRewriter struct {
	indexes *index.Collection
	cache   *cache.ProjectCache
}

// NewIndexRewriter creates a rewriter over the collection's search index.
// Results are materialized through projects.
func NewIndexRewriter(indexes *index.Collection, projects *cache.ProjectCache) *IndexRewriter {
	return &IndexRewriter{indexes: indexes, cache: projects}
}

// Rewrite returns a query that runs pred against the search index designated
// right now. It fails with index.ErrNoSearchIndex when none is designated.
func (r *IndexRewriter) Rewrite(pred predicate.Predicate, opts index.QueryOptions) (*IndexedQuery, error) {
	idx := r.indexes.SearchIndex()
	if idx == nil {
		return nil, index.ErrNoSearchIndex
	}
	if opts.Start < 0 {
		return nil, fmt.Errorf("start cannot be less than zero: %d", opts.Start)
	}
	if err := index.CheckFields(idx.Schema(), pred); err != nil {
		return nil, err
	}
	return &IndexedQuery{index: idx, pred: pred, opts: opts, cache: r.cache}, nil
}

// IndexedQuery is a predicate bound to one index version
type IndexedQuery struct {
	index index.Index
	pred  predicate.Predicate
	opts  index.QueryOptions
	cache *cache.ProjectCache
}

// Predicate returns the wrapped predicate
func (q *IndexedQuery) Predicate() predicate.Predicate {
	return q.pred
}

// Index returns the index the query is bound to
func (q *IndexedQuery) Index() index.Index {
	return q.index
}

// Names runs the query and returns matching names in index order
func (q *IndexedQuery) Names(ctx context.Context) ([]string, error) {
	return q.index.Search(ctx, q.pred, q.opts)
}

// Read runs the query and materializes the results. Projects that vanished
// since they were indexed are skipped.
func (q *IndexedQuery) Read(ctx context.Context) ([]*types.ProjectData, error) {
	names, err := q.Names(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*types.ProjectData, 0, len(names))
	for _, name := range names {
		state, ok, err := q.cache.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		pd, err := state.ToProjectData(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, pd)
	}
	return out, nil
}

// ReadChecked is Read followed by a local re-check of every result against
// its current snapshot. Results whose indexed document no longer matches
// are dropped. Unmatchable predicates are returned unchecked.
func (q *IndexedQuery) ReadChecked(ctx context.Context) ([]*types.ProjectData, error) {
	results, err := q.Read(ctx)
	if err != nil || !predicate.IsMatchable(q.pred) {
		return results, err
	}

	out := results[:0]
	for _, pd := range results {
		ok, err := q.Match(pd)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, pd)
		}
	}
	return out, nil
}

// Match evaluates the wrapped predicate against pd without touching the
// index. It fails with predicate.ErrNotMatchable if the predicate cannot be
// evaluated locally.
func (q *IndexedQuery) Match(pd *types.ProjectData) (bool, error) {
	if !predicate.IsMatchable(q.pred) {
		return false, fmt.Errorf("%w: %s", predicate.ErrNotMatchable, q.pred)
	}
	return q.pred.(predicate.Matcher).Match(pd), nil
}

// Cost is a planner hint; one indexed query is always one index round trip
func (q *IndexedQuery) Cost() int {
	return 1
}

func (q *IndexedQuery) String() string {
	return fmt.Sprintf("index(v%d, %s, start=%d, limit=%d)", q.index.Schema().Version, q.pred, q.opts.Start, q.opts.Limit)
}
