// Package staleness detects index documents that no longer match the
// configuration store.
//
// Every document stores the ref states of the project's whole tree, self
// and ancestors. A check recomputes that set from the current project data
// and compares it with the stored one, so a change to any ancestor shows up
// without reading the ancestors' documents.
package staleness
