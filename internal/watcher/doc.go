// Package watcher turns edits under the project store into index updates.
// It is the configuration-update hook of the service: every changed
// project.yaml is evicted from the cache and indexed again.
package watcher
