// Package indexer writes projects to the versioned project index.
//
// ProjectIndexer handles single projects: it replaces the project's
// document in every write index, or deletes it when the project is gone,
// then notifies listeners. It runs on the caller's goroutine.
//
// AllProjectsIndexer rebuilds one index version from every known project
// with a bounded pool of workers:
//
//	batch := indexer.NewAllProjectsIndexer(projects, indexes, &indexer.Config{Workers: 8}, logger)
//	result := batch.Reindex(ctx, target)
//	fmt.Printf("done=%d failed=%d ok=%v in %v\n", result.Done, result.Failed, result.Success, result.Elapsed)
//
// Each unit evicts the project from the cache, reads it fresh and replaces
// its document. Unit failures are logged and counted; they never abort the
// run. Re-running is always safe because replace is idempotent.
//
// OnlineReindexer builds on both to migrate searches to a new schema
// version without downtime.
package indexer
