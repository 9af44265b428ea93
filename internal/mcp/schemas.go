package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// reindexAllTool returns the tool definition for reindex_all
func reindexAllTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_all",
		Description: "Rebuild one index version from every known project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"version": map[string]interface{}{
					"type":        "integer",
					"description": "Schema version to rebuild; omitted selects the search version",
					"enum":        []int{4, 5},
				},
			},
		},
	}
}

// checkStalenessTool returns the tool definition for check_staleness
func checkStalenessTool() mcp.Tool {
	return mcp.Tool{
		Name:        "check_staleness",
		Description: "Compare a project's indexed ref states with its current parent chain",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project": map[string]interface{}{
					"type":        "string",
					"description": "Project name, e.g. 'acme/core'",
				},
			},
			Required: []string{"project"},
		},
	}
}

// indexProjectTool returns the tool definition for index_project
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Reload one project from disk and write it to every write index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project": map[string]interface{}{
					"type":        "string",
					"description": "Project name; a project that no longer exists is removed from the index",
				},
			},
			Required: []string{"project"},
		},
	}
}

// searchProjectsTool returns the tool definition for search_projects
func searchProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_projects",
		Description: "Search indexed projects with operator queries (name:, parent:, ancestor:, prefix:, substring:, inname:, description:, state:)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query string; terms are ANDed, OR separates alternatives, '-' negates",
				},
				"start": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to skip",
					"default":     0,
					"minimum":     0,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-500)",
					"default":     25,
					"minimum":     1,
					"maximum":     500,
				},
			},
			Required: []string{"query"},
		},
	}
}

// activateIndexTool returns the tool definition for activate_index
func activateIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "activate_index",
		Description: "Build a schema version online and switch searches to it when complete",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"version": map[string]interface{}{
					"type":        "integer",
					"description": "Schema version to activate",
					"enum":        []int{4, 5},
				},
			},
			Required: []string{"version"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index versions, readiness and document counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
