package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(projects ...Project) *ProjectData {
	var pd *ProjectData
	for i := len(projects) - 1; i >= 0; i-- {
		pd = NewProjectData(projects[i], pd)
	}
	return pd
}

func TestProjectData_Tree(t *testing.T) {
	pd := chain(
		Project{Name: "acme/core/lib", Parent: "acme/core"},
		Project{Name: "acme/core", Parent: "acme"},
		Project{Name: "acme"},
	)

	tree := pd.Tree()
	require.Len(t, tree, 3)
	assert.Equal(t, "acme/core/lib", tree[0].Name())
	assert.Equal(t, "acme/core", tree[1].Name())
	assert.Equal(t, "acme", tree[2].Name())

	assert.Equal(t, []string{"acme/core", "acme"}, pd.ParentNames())
}

func TestProjectData_RootHasNoParents(t *testing.T) {
	pd := NewProjectData(Project{Name: "acme"}, nil)

	assert.Len(t, pd.Tree(), 1)
	assert.Empty(t, pd.ParentNames())
	assert.Nil(t, pd.Parent())
}

func TestProjectData_TreeStopsOnRepeatedName(t *testing.T) {
	// a -> b -> a: the second "a" is never visited
	pd := chain(
		Project{Name: "a", Parent: "b"},
		Project{Name: "b", Parent: "a"},
		Project{Name: "a", Parent: "b"},
	)

	assert.Equal(t, []string{"b"}, pd.ParentNames())
}

func TestProjectData_RefStates(t *testing.T) {
	pd := chain(
		Project{Name: "acme/core", Parent: "acme/mid", ConfigHash: "aaa111"},
		Project{Name: "acme/mid", Parent: "acme"},
		Project{Name: "acme", ConfigHash: "ccc333"},
	)

	states := pd.RefStates()
	assert.Equal(t, 2, states.Len())
	assert.Contains(t, states["acme/core"], RefState{Project: "acme/core", Ref: RefsConfig, Hash: "aaa111"})
	assert.Contains(t, states["acme"], RefState{Project: "acme", Ref: RefsConfig, Hash: "ccc333"})
	assert.NotContains(t, states, "acme/mid")
}

func TestProject_Validate(t *testing.T) {
	tests := []struct {
		name    string
		project Project
		wantErr error
	}{
		{"valid", Project{Name: "acme/core"}, nil},
		{"empty", Project{}, ErrEmptyName},
		{"leading slash", Project{Name: "/acme"}, ErrInvalidName},
		{"trailing slash", Project{Name: "acme/"}, ErrInvalidName},
		{"double slash", Project{Name: "acme//core"}, ErrInvalidName},
		{"dot dot", Project{Name: "acme/../core"}, ErrInvalidName},
		{"self parent", Project{Name: "acme", Parent: "acme"}, ErrParentCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.project.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseProjectState(t *testing.T) {
	s, err := ParseProjectState("READ-ONLY")
	require.NoError(t, err)
	assert.Equal(t, StateReadOnly, s)

	_, err = ParseProjectState("bla")
	assert.ErrorIs(t, err, ErrInvalidState)
}
