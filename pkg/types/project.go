package types

import (
	"fmt"
	"strings"
)

// ProjectState is the lifecycle state of a project
type ProjectState string

const (
	StateActive   ProjectState = "active"
	StateReadOnly ProjectState = "read-only"
	StateHidden   ProjectState = "hidden"
)

// ParseProjectState converts a string to a ProjectState
func ParseProjectState(s string) (ProjectState, error) {
	switch ProjectState(strings.ToLower(strings.TrimSpace(s))) {
	case StateActive:
		return StateActive, nil
	case StateReadOnly:
		return StateReadOnly, nil
	case StateHidden:
		return StateHidden, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// Project is a snapshot of one project's configuration
type Project struct {
	Name        string // Globally unique, slash-segmented
	Description string
	Parent      string // Empty for root projects
	ConfigHash  string // Hash of the project's config ref; empty when unset
	State       ProjectState
}

// Validate checks that the project snapshot is usable as an index key
func (p *Project) Validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}
	if strings.HasPrefix(p.Name, "/") || strings.HasSuffix(p.Name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, p.Name)
	}
	for _, seg := range strings.Split(p.Name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, p.Name)
		}
	}
	if p.Parent == p.Name {
		return fmt.Errorf("%w: %q is its own parent", ErrParentCycle, p.Name)
	}
	return nil
}

// Fingerprint returns the RefState of the project's own config ref.
// The second return value is false when the project has no config hash.
func (p *Project) Fingerprint() (RefState, bool) {
	if p.ConfigHash == "" {
		return RefState{}, false
	}
	return RefState{Project: p.Name, Ref: RefsConfig, Hash: p.ConfigHash}, true
}

// ProjectData is an immutable project snapshot together with its resolved
// parent chain. A ProjectData exclusively owns its parent; there is no
// back-reference from parent to child.
type ProjectData struct {
	project Project
	parent  *ProjectData
}

// NewProjectData creates a ProjectData with the given parent (nil for a root)
func NewProjectData(project Project, parent *ProjectData) *ProjectData {
	return &ProjectData{project: project, parent: parent}
}

// Project returns the project snapshot
func (d *ProjectData) Project() Project {
	return d.project
}

// Name returns the project name
func (d *ProjectData) Name() string {
	return d.project.Name
}

// Parent returns the parent data, or nil for a root project
func (d *ProjectData) Parent() *ProjectData {
	return d.parent
}

// Tree returns the chain from this project to the root, self first.
// A project name seen twice ends the walk.
func (d *ProjectData) Tree() []*ProjectData {
	var tree []*ProjectData
	seen := make(map[string]struct{})
	for cur := d; cur != nil; cur = cur.parent {
		if _, ok := seen[cur.project.Name]; ok {
			break
		}
		seen[cur.project.Name] = struct{}{}
		tree = append(tree, cur)
	}
	return tree
}

// ParentNames returns the names of all ancestors, root last
func (d *ProjectData) ParentNames() []string {
	tree := d.Tree()
	names := make([]string, 0, len(tree)-1)
	for _, p := range tree[1:] {
		names = append(names, p.project.Name)
	}
	return names
}

// RefStates returns the fingerprints of every project in the tree that has one
func (d *ProjectData) RefStates() RefStates {
	states := NewRefStates()
	for _, p := range d.Tree() {
		if rs, ok := p.project.Fingerprint(); ok {
			states.Add(rs)
		}
	}
	return states
}

func (d *ProjectData) String() string {
	return fmt.Sprintf("ProjectData{%s, parents=%v}", d.project.Name, d.ParentNames())
}
