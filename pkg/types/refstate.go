package types

import (
	"fmt"
	"slices"
	"strings"
)

// RefsConfig is the ref holding a project's configuration
const RefsConfig = "refs/meta/config"

const refStateSep = ":"

// RefState is a content fingerprint: the hash a ref of a project pointed to
type RefState struct {
	Project string
	Ref     string
	Hash    string
}

// String returns the fixed text form "<project>:<ref>:<hash>"
func (r RefState) String() string {
	return r.Project + refStateSep + r.Ref + refStateSep + r.Hash
}

// Bytes returns the opaque blob stored in the index
func (r RefState) Bytes() []byte {
	return []byte(r.String())
}

// ParseRefState parses a blob produced by Bytes. Refs and hashes never
// contain ':', so the text is split from the right.
func ParseRefState(b []byte) (RefState, error) {
	s := string(b)
	i := strings.LastIndex(s, refStateSep)
	if i <= 0 {
		return RefState{}, fmt.Errorf("%w: %q", ErrInvalidRefState, s)
	}
	hash := s[i+1:]
	rest := s[:i]
	j := strings.LastIndex(rest, refStateSep)
	if j <= 0 {
		return RefState{}, fmt.Errorf("%w: %q", ErrInvalidRefState, s)
	}
	rs := RefState{Project: rest[:j], Ref: rest[j+1:], Hash: hash}
	if rs.Ref == "" || rs.Hash == "" {
		return RefState{}, fmt.Errorf("%w: %q", ErrInvalidRefState, s)
	}
	return rs, nil
}

// RefStates is a multimap from project name to the set of fingerprints
// recorded for that project
type RefStates map[string]map[RefState]struct{}

// NewRefStates returns an empty multimap
func NewRefStates() RefStates {
	return make(RefStates)
}

// ParseRefStates parses a list of stored blobs into a multimap
func ParseRefStates(blobs [][]byte) (RefStates, error) {
	states := NewRefStates()
	for _, b := range blobs {
		rs, err := ParseRefState(b)
		if err != nil {
			return nil, err
		}
		states.Add(rs)
	}
	return states, nil
}

// Add inserts a fingerprint under its project
func (s RefStates) Add(rs RefState) {
	set, ok := s[rs.Project]
	if !ok {
		set = make(map[RefState]struct{})
		s[rs.Project] = set
	}
	set[rs] = struct{}{}
}

// Len returns the total number of fingerprints
func (s RefStates) Len() int {
	n := 0
	for _, set := range s {
		n += len(set)
	}
	return n
}

// Equal reports exact multimap equality
func (s RefStates) Equal(other RefStates) bool {
	if len(s) != len(other) {
		return false
	}
	for project, set := range s {
		otherSet, ok := other[project]
		if !ok || len(set) != len(otherSet) {
			return false
		}
		for rs := range set {
			if _, ok := otherSet[rs]; !ok {
				return false
			}
		}
	}
	return true
}

// Sorted returns all fingerprints ordered by their text form
func (s RefStates) Sorted() []RefState {
	out := make([]RefState, 0, s.Len())
	for _, set := range s {
		for rs := range set {
			out = append(out, rs)
		}
	}
	slices.SortFunc(out, func(a, b RefState) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

func (s RefStates) String() string {
	parts := make([]string, 0, s.Len())
	for _, rs := range s.Sorted() {
		parts = append(parts, rs.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
