// Package query binds backend-neutral predicates to the current search
// index. An IndexedQuery runs remotely through Read and can re-check a
// single candidate locally through Match.
package query
