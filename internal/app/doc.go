// Package app wires the project index service from its configuration: the
// SQLite index versions, the project store and cache, the indexers, the
// staleness checker and the query rewriter.
package app
