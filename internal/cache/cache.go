package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/projectindex/pkg/types"
)

// DefaultSize is the number of project snapshots kept when no size is configured
const DefaultSize = 1024

var (
	// ErrNotFound is returned by a Loader when the project does not exist
	ErrNotFound = errors.New("project not found")
)

// Loader reads projects from the authoritative configuration store
type Loader interface {
	// Load returns the current snapshot of a project, or ErrNotFound
	Load(ctx context.Context, name string) (*types.Project, error)

	// List returns the names of every known project
	List(ctx context.Context) ([]string, error)
}

// ProjectCache keeps recently read project snapshots in memory.
// Missing projects are never cached.
type ProjectCache struct {
	loader  Loader
	entries *lru.Cache[string, *ProjectState]
}

// New creates a cache of at most size snapshots over loader
func New(loader Loader, size int) (*ProjectCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, *ProjectState](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &ProjectCache{loader: loader, entries: entries}, nil
}

// Get returns the cached state of a project, loading it on a miss.
// The boolean is false when the project does not exist.
func (c *ProjectCache) Get(ctx context.Context, name string) (*ProjectState, bool, error) {
	if state, ok := c.entries.Get(name); ok {
		return state, true, nil
	}

	p, err := c.loader.Load(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load project %s: %w", name, err)
	}

	state := &ProjectState{project: *p, cache: c}
	c.entries.Add(name, state)
	return state, true, nil
}

// Evict drops a project so the next Get reads it fresh
func (c *ProjectCache) Evict(name string) {
	c.entries.Remove(name)
}

// Refresh reloads a project and every ancestor from the loader, replacing
// the cached snapshots. The walk stops at a missing parent or a name seen
// twice; ToProjectData reports the cycle.
func (c *ProjectCache) Refresh(ctx context.Context, name string) error {
	seen := make(map[string]struct{})
	for name != "" {
		if _, ok := seen[name]; ok {
			return nil
		}
		seen[name] = struct{}{}

		c.entries.Remove(name)
		state, ok, err := c.Get(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		name = state.project.Parent
	}
	return nil
}

// GetFresh is Get after a Refresh of the project's chain
func (c *ProjectCache) GetFresh(ctx context.Context, name string) (*ProjectState, bool, error) {
	if err := c.Refresh(ctx, name); err != nil {
		return nil, false, err
	}
	return c.Get(ctx, name)
}

// Purge drops every cached snapshot
func (c *ProjectCache) Purge() {
	c.entries.Purge()
}

// All returns the names of every known project, sorted
func (c *ProjectCache) All(ctx context.Context) ([]string, error) {
	names, err := c.loader.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	names = slices.Clone(names)
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Len returns the number of cached snapshots
func (c *ProjectCache) Len() int {
	return c.entries.Len()
}

// ProjectState is the cached materialized state of one project
type ProjectState struct {
	project types.Project
	cache   *ProjectCache
}

// Project returns the project snapshot
func (s *ProjectState) Project() types.Project {
	return s.project
}

// ToProjectData resolves the parent chain through the cache. A parent that
// no longer exists ends the chain; a name seen twice fails with
// types.ErrParentCycle.
func (s *ProjectState) ToProjectData(ctx context.Context) (*types.ProjectData, error) {
	chain := []types.Project{s.project}
	seen := map[string]struct{}{s.project.Name: {}}

	for parent := s.project.Parent; parent != ""; {
		if _, ok := seen[parent]; ok {
			return nil, fmt.Errorf("%w: %s reached again from %s", types.ErrParentCycle, parent, s.project.Name)
		}
		seen[parent] = struct{}{}

		state, ok, err := s.cache.Get(ctx, parent)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		chain = append(chain, state.project)
		parent = state.project.Parent
	}

	var pd *types.ProjectData
	for i := len(chain) - 1; i >= 0; i-- {
		pd = types.NewProjectData(chain[i], pd)
	}
	return pd, nil
}
