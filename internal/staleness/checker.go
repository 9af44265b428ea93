package staleness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/schema"
	"github.com/dshills/projectindex/pkg/types"
)

var tracer = otel.Tracer("projectindex.staleness")

// ErrIllegalState is returned when checking a project the cache cannot resolve
var ErrIllegalState = errors.New("illegal state")

// Reasons reported for stale results
const (
	ReasonMissing  = "missing from index"
	ReasonMismatch = "ref states differ"
)

var ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "projectindex",
	Subsystem: "staleness",
	Name:      "checks_total",
	Help:      "Staleness checks by outcome",
}, []string{"result"})

// Collectors returns the package metrics for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{ChecksTotal}
}

// Result is the outcome of one staleness check. Indexed and Current are set
// when a document was found.
type Result struct {
	Stale   bool
	Reason  string
	Indexed types.RefStates
	Current types.RefStates
}

// NotStale is the result for up-to-date documents
func NotStale() Result {
	return Result{}
}

// Diff describes how the indexed ref states differ from the current ones
func (r Result) Diff() string {
	if r.Indexed == nil && r.Current == nil {
		return ""
	}
	return cmp.Diff(r.Indexed.Sorted(), r.Current.Sorted())
}

func (r Result) String() string {
	if !r.Stale {
		return "not stale"
	}
	if r.Reason == ReasonMismatch {
		return fmt.Sprintf("stale (%s): indexed=%s current=%s", r.Reason, r.Indexed, r.Current)
	}
	return "stale (" + r.Reason + ")"
}

// Checker decides whether a project's document still matches the
// configuration store. It never writes.
type Checker struct {
	cache   *cache.ProjectCache
	indexes *index.Collection
	logger  *slog.Logger
}

// NewChecker creates a staleness checker
func NewChecker(projects *cache.ProjectCache, indexes *index.Collection, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{cache: projects, indexes: indexes, logger: logger}
}

// Check compares the ref states captured in the search index document for
// name with the ref states of the project's current tree. Without a search
// index nothing can be compared and the project is reported not stale.
// The project and its ancestors are reloaded, not taken from the cache.
func (c *Checker) Check(ctx context.Context, name string) (result Result, err error) {
	ctx, span := tracer.Start(ctx, "Checker.Check",
		trace.WithAttributes(attribute.String("project", name)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			ChecksTotal.WithLabelValues("error").Inc()
		} else {
			span.SetAttributes(attribute.Bool("stale", result.Stale))
			ChecksTotal.WithLabelValues(label(result)).Inc()
		}
		span.End()
	}()

	state, ok, err := c.cache.GetFresh(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("%w: project %s not found", ErrIllegalState, name)
	}

	idx := c.indexes.SearchIndex()
	if idx == nil {
		return NotStale(), nil
	}

	raw, found, err := idx.GetRaw(ctx, name, index.QueryOptions{
		Fields: []string{schema.Name.Name, schema.RefState.Name},
		Limit:  1,
	})
	if err != nil {
		return Result{}, err
	}
	if !found {
		c.logger.Debug("project is stale", "project", name, "reason", ReasonMissing)
		return Result{Stale: true, Reason: ReasonMissing}, nil
	}

	indexed, err := types.ParseRefStates(raw[schema.RefState.Name])
	if err != nil {
		return Result{}, fmt.Errorf("project %s: %w", name, err)
	}

	pd, err := state.ToProjectData(ctx)
	if err != nil {
		return Result{}, err
	}
	current := pd.RefStates()

	if indexed.Equal(current) {
		return NotStale(), nil
	}
	result = Result{Stale: true, Reason: ReasonMismatch, Indexed: indexed, Current: current}
	c.logger.Debug("project is stale", "project", name, "reason", ReasonMismatch, "diff", result.Diff())
	return result, nil
}

func label(r Result) string {
	switch {
	case !r.Stale:
		return "fresh"
	case r.Reason == ReasonMissing:
		return "missing"
	default:
		return "stale"
	}
}
