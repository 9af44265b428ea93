// Package projectstore is a file-backed project configuration store. Each
// project lives in <root>/<name>/project.yaml:
//
//	description: Core services
//	parent: acme
//	state: read-only
//
// The SHA-256 of the file content is the project's config fingerprint, so
// any edit to the file changes the project's RefState.
package projectstore
