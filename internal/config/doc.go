// Package config loads the service configuration from a YAML file and
// PROJECTINDEX_* environment variables.
//
//	database_path: ~/.projectindex/index.db
//	projects_root: ~/.projectindex/projects
//	log_level: info
//	metrics_addr: 127.0.0.1:9464
//	index:
//	  write_versions: [4, 5]
//	  search_version: 4
//	  reindex_stale_descendants: true
//	reindex:
//	  workers: 8
//	cache:
//	  size: 1024
//	watch:
//	  enabled: true
//	  debounce: 250ms
package config
