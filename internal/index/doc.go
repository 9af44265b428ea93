// Package index defines the narrow interface every project index backend
// implements, and the Collection that tracks which index versions receive
// writes and which one answers reads.
//
// During a schema migration two versions are write indexes at once:
//
//	coll.AddWriteIndex(v4)
//	coll.AddWriteIndex(v5)
//	coll.SetSearchIndex(v4) // reads stay on v4 until v5 is rebuilt
//
// Writes to several versions are not atomic across versions. Replace and
// Delete are idempotent, so callers recover from a partial failure by
// repeating the whole call.
package index
