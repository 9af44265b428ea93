package types

import "errors"

// Domain errors for project snapshots and fingerprints
var (
	ErrEmptyName       = errors.New("project name cannot be empty")
	ErrInvalidName     = errors.New("invalid project name")
	ErrInvalidState    = errors.New("invalid project state")
	ErrParentCycle     = errors.New("cyclic parent chain")
	ErrInvalidRefState = errors.New("invalid ref state")
)
