package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/dshills/projectindex/internal/cache"
	"github.com/dshills/projectindex/pkg/types"
)

// MemoryLoader is a cache.Loader over an in-memory project map. Individual
// projects can be made to fail on load.
type MemoryLoader struct {
	mu       sync.Mutex
	projects map[string]types.Project
	failures map[string]error
	loads    map[string]int
	listErr  error
}

var _ cache.Loader = (*MemoryLoader)(nil)

// NewMemoryLoader creates a loader holding the given projects
func NewMemoryLoader(projects ...types.Project) *MemoryLoader {
	l := &MemoryLoader{
		projects: make(map[string]types.Project),
		failures: make(map[string]error),
		loads:    make(map[string]int),
	}
	l.Put(projects...)
	return l
}

// Put adds or replaces projects
func (l *MemoryLoader) Put(projects ...types.Project) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range projects {
		l.projects[p.Name] = p
	}
}

// Remove deletes a project
func (l *MemoryLoader) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.projects, name)
}

// SetHash changes a project's config fingerprint
func (l *MemoryLoader) SetHash(name, hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.projects[name]
	p.ConfigHash = hash
	l.projects[name] = p
}

// SetDescription changes a project's description
func (l *MemoryLoader) SetDescription(name, description string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.projects[name]
	p.Description = description
	l.projects[name] = p
}

// Fail makes every Load of name return err; nil clears it
func (l *MemoryLoader) Fail(name string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.failures, name)
		return
	}
	l.failures[name] = err
}

// FailList makes List return err; nil clears it
func (l *MemoryLoader) FailList(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listErr = err
}

// Loads returns how many times name was loaded
func (l *MemoryLoader) Loads(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[name]
}

func (l *MemoryLoader) Load(_ context.Context, name string) (*types.Project, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[name]++
	if err, ok := l.failures[name]; ok {
		return nil, err
	}
	p, ok := l.projects[name]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return &p, nil
}

func (l *MemoryLoader) List(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, l.listErr
	}
	names := make([]string, 0, len(l.projects))
	for name := range l.projects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
