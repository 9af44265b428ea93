// Package mcp implements the Model Context Protocol (MCP) server for the
// project index.
//
// The server exposes six tools to MCP clients:
//   - reindex_all: Rebuild one index version from every project
//   - check_staleness: Compare a project's indexed ref states with its parent chain
//   - index_project: Reload one project and write it to every write index
//   - search_projects: Run an operator query against the search index
//   - activate_index: Build a schema version online and switch searches to it
//   - get_status: Report index versions, readiness and document counts
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started by the serve command:
//
//	projectindex serve
//
// # Tool: search_projects
//
//	Request:
//	{
//	  "name": "search_projects",
//	  "arguments": {
//	    "query": "ancestor:acme -state:hidden",
//	    "start": 0,
//	    "limit": 25
//	  }
//	}
//
//	Response:
//	{
//	  "count": 2,
//	  "projects": [
//	    {"name": "acme/core", "parent": "acme", "state": "active"},
//	    {"name": "acme/core/api", "parent": "acme/core", "state": "active"}
//	  ]
//	}
//
// Results come back in name order and are re-checked against the current
// project state before they are returned.
//
// # Tool: check_staleness
//
//	Request:
//	{"name": "check_staleness", "arguments": {"project": "acme/core"}}
//
//	Response:
//	{
//	  "project": "acme/core",
//	  "stale": true,
//	  "reason": "ref states differ",
//	  "indexed": ["acme/core:refs/meta/config:aaa111", "acme:refs/meta/config:ccc333"],
//	  "current": ["acme/core:refs/meta/config:bbb222", "acme:refs/meta/config:ccc333"]
//	}
//
// # Error Handling
//
// Tool failures are returned as *MCPError values:
//   - -32602: Invalid params (missing or invalid arguments, bad query)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Project not found
//   - -32002: A full reindex is already running
//   - -32003: No search index is ready
//   - -32004: Query is empty
//
// # Logging
//
// The server logs to stderr; stdout is reserved for the protocol. Set the
// log level via PROJECTINDEX_LOG_LEVEL.
package mcp
