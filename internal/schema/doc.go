// Package schema defines the project index fields and their versioned
// schemas.
//
// A FieldDef pairs a name and a FieldType with a pure accessor over
// types.ProjectData. Backends decide how each type is encoded; the definitions
// here know nothing about any backend.
//
//	doc := schema.V5.Build(pd)
//	doc.Get("ref_state") // one blob per project in pd.Tree() with a config hash
//
// Several versions can be active at once during a migration. Build has no
// shared state, so V4.Build and V5.Build may run on the same snapshot
// concurrently.
package schema
