package schema

import (
	"fmt"
	"slices"
)

var (
	// V4 is the base project schema
	V4 = New(4, Name, Description, ParentName, NamePart, AncestorName, RefState)

	// V5 adds the lifecycle state
	V5 = New(5, Name, Description, ParentName, NamePart, AncestorName, RefState, State)
)

var all = []*Schema{V4, V5}

// All returns every known schema, oldest first
func All() []*Schema {
	return slices.Clone(all)
}

// Latest returns the newest schema
func Latest() *Schema {
	return all[len(all)-1]
}

// Get returns the schema for a version
func Get(version int) (*Schema, error) {
	for _, s := range all {
		if s.Version == version {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown schema version %d", version)
}
