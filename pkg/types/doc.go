// Package types provides the project and fingerprint types shared by the
// index, cache, and staleness components.
//
// # Projects
//
// A Project is a snapshot of one project's configuration. ProjectData adds the
// resolved parent chain:
//
//	root := types.NewProjectData(types.Project{Name: "acme"}, nil)
//	core := types.NewProjectData(types.Project{Name: "acme/core", Parent: "acme"}, root)
//
//	core.Tree()        // [acme/core, acme]
//	core.ParentNames() // [acme]
//
// ProjectData is immutable. A changed project gets a new ProjectData.
//
// # Fingerprints
//
// A RefState is a (project, ref, hash) triple. Every project in a chain that has
// a config hash contributes one RefState:
//
//	states := core.RefStates()
//	// {"acme": {acme:refs/meta/config:aaa111}, "acme/core": {...}}
//
// The index stores these states next to each document so that a later change to
// any project in the chain, ancestors included, can be detected by comparing the
// stored set against a freshly computed one.
package types
