// Package cache provides the in-memory project cache that the indexers and
// the staleness checker read projects through. Snapshots come from a Loader
// backed by the authoritative configuration store.
package cache
