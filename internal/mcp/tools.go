package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/internal/indexer"
	"github.com/dshills/projectindex/internal/predicate"
	"github.com/dshills/projectindex/internal/schema"
	"github.com/dshills/projectindex/internal/staleness"
	"github.com/dshills/projectindex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Project is not known to the project store
	ErrorCodeIndexingInProgress = -32002 // Another full reindex is already running
	ErrorCodeNotIndexed         = -32003 // No search index is ready
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 500
)

// handleReindexAll handles the reindex_all tool invocation
func (s *Server) handleReindexAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	version := getIntDefault(args, "version", 0)
	if version != 0 {
		if err := validateVersion(version); err != nil {
			return nil, err
		}
	}

	result, err := s.app.Reindex(ctx, version)
	if err != nil {
		return nil, reindexError(err)
	}
	return mcp.NewToolResultText(formatJSON(resultJSON(result))), nil
}

// handleCheckStaleness handles the check_staleness tool invocation
func (s *Server) handleCheckStaleness(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, err := requireProject(args)
	if err != nil {
		return nil, err
	}

	result, err := s.app.Checker.Check(ctx, name)
	if errors.Is(err, staleness.ErrIllegalState) {
		return nil, newMCPError(ErrorCodeProjectNotFound, "project not found", map[string]interface{}{
			"project": name,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "staleness check failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"project": name,
		"stale":   result.Stale,
		"indexed": refStrings(result.Indexed),
		"current": refStrings(result.Current),
	}
	if result.Reason != "" {
		response["reason"] = result.Reason
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexProject handles the index_project tool invocation
func (s *Server) handleIndexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, err := requireProject(args)
	if err != nil {
		return nil, err
	}

	if err := s.app.Cache.Refresh(ctx, name); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project", map[string]interface{}{
			"project": name,
			"error":   err.Error(),
		})
	}
	if err := s.app.Indexer.Index(ctx, name); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"project": name,
			"error":   err.Error(),
		})
	}

	_, exists, err := s.app.Cache.Get(ctx, name)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project", map[string]interface{}{
			"error": err.Error(),
		})
	}
	response := map[string]interface{}{
		"project": name,
		"indexed": exists,
		"deleted": !exists,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchProjects handles the search_projects tool invocation
func (s *Server) handleSearchProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	start := getIntDefault(args, "start", 0)
	if start < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "start cannot be negative", map[string]interface{}{
			"param": "start",
			"value": start,
		})
	}
	limit := getIntDefault(args, "limit", defaultSearchLimit)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	results, err := s.app.Search(ctx, query, start, limit)
	switch {
	case errors.Is(err, predicate.ErrBadQuery), errors.Is(err, index.ErrUnsupportedField):
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid query", map[string]interface{}{
			"param":  "query",
			"reason": err.Error(),
		})
	case errors.Is(err, index.ErrNoSearchIndex):
		return nil, newMCPError(ErrorCodeNotIndexed, "no search index is ready; run reindex_all first", nil)
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	projects := make([]map[string]interface{}, 0, len(results))
	for _, pd := range results {
		p := pd.Project()
		entry := map[string]interface{}{
			"name":  p.Name,
			"state": string(p.State),
		}
		if p.Description != "" {
			entry["description"] = p.Description
		}
		if p.Parent != "" {
			entry["parent"] = p.Parent
		}
		projects = append(projects, entry)
	}

	response := map[string]interface{}{
		"query":    query,
		"start":    start,
		"limit":    limit,
		"count":    len(projects),
		"projects": projects,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleActivateIndex handles the activate_index tool invocation
func (s *Server) handleActivateIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	version := getIntDefault(args, "version", 0)
	if err := validateVersion(version); err != nil {
		return nil, err
	}

	result, err := s.app.Activate(ctx, version)
	if err != nil {
		return nil, reindexError(err)
	}
	response := resultJSON(result)
	response["activated"] = result.Success
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.app.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	versions := make([]map[string]interface{}, 0, len(status.Versions))
	for _, v := range status.Versions {
		entry := map[string]interface{}{
			"version":   v.Version,
			"ready":     v.Ready,
			"write":     v.Write,
			"search":    v.Search,
			"documents": v.Documents,
		}
		if v.LastReindexAt != "" {
			entry["last_reindex_at"] = v.LastReindexAt
			entry["last_reindex_ok"] = v.LastReindexOK
		}
		versions = append(versions, entry)
	}

	response := map[string]interface{}{
		"projects":   status.Projects,
		"reindexing": status.Reindexing,
		"versions":   versions,
		"health": map[string]interface{}{
			"build_mode":          status.BuildMode,
			"driver":              status.Driver,
			"searches_enabled":    s.app.Indexes.SearchIndex() != nil,
			"database_accessible": true,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// arguments returns the argument map of a request; a request without
// arguments yields an empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, bool) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, true
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	return args, ok
}

// requireProject extracts and validates the project parameter
func requireProject(args map[string]interface{}) (string, error) {
	name, ok := args["project"].(string)
	if !ok || name == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "project parameter is required", map[string]interface{}{
			"param":  "project",
			"reason": "missing or empty",
		})
	}
	p := types.Project{Name: name}
	if err := p.Validate(); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid project name", map[string]interface{}{
			"param":  "project",
			"reason": err.Error(),
		})
	}
	return name, nil
}

// validateVersion checks that version names a known schema
func validateVersion(version int) error {
	if _, err := schema.Get(version); err != nil {
		allowed := make([]int, 0, len(schema.All()))
		for _, sch := range schema.All() {
			allowed = append(allowed, sch.Version)
		}
		return newMCPError(ErrorCodeInvalidParams, "invalid version", map[string]interface{}{
			"param":   "version",
			"value":   version,
			"allowed": allowed,
		})
	}
	return nil
}

// reindexError maps a reindex failure to an MCP error
func reindexError(err error) error {
	switch {
	case errors.Is(err, indexer.ErrReindexRunning):
		return newMCPError(ErrorCodeIndexingInProgress, "a reindex is already running", nil)
	case errors.Is(err, index.ErrNoWriteIndex):
		return newMCPError(ErrorCodeInvalidParams, "version is not a write index", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "reindex failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func resultJSON(r indexer.Result) map[string]interface{} {
	return map[string]interface{}{
		"run_id":      r.RunID,
		"version":     r.Version,
		"success":     r.Success,
		"done":        r.Done,
		"failed":      r.Failed,
		"duration_ms": r.Elapsed.Milliseconds(),
	}
}

func refStrings(refs types.RefStates) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs.Sorted() {
		out = append(out, r.String())
	}
	return out
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
