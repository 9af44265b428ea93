// Package testutil holds fixtures shared by package tests: an in-memory
// project loader with failure injection and SQLite index helpers.
package testutil
