// Package storage provides the SQLite backend of the project index.
//
// One database holds every index schema version side by side, which is what
// lets a migration write v4 and v5 at the same time:
//
//	store, err := storage.NewSQLiteStorage("/var/lib/projectindex/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	v4, _ := store.OpenIndex(ctx, schema.V4)
//	v5, _ := store.OpenIndex(ctx, schema.V5)
//
// # Tables
//
// Catalog tables are created by versioned migrations (see migrations.go):
//   - schema_version: applied catalog migrations
//   - index_versions: one row per index version with its ready flag and the
//     outcome of its last full rebuild
//
// Each index version gets its own table family, created by OpenIndex:
//   - docs_vN: one row per project
//   - fields_vN: one row per field value; text for matching, raw bytes for
//     retrieval (stored-only fields have no text)
//   - fts_vN: FTS5 table for full-text fields
//
// # Queries
//
// Search translates a predicate tree into a WHERE clause, one EXISTS
// subquery per field predicate. Results are ordered by project name.
//
// GetRaw reads stored field bytes for a single key without building a
// document, which is all the staleness checker needs.
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags "cgo_sqlite,sqlite_fts5" switches to github.com/mattn/go-sqlite3.
package storage
