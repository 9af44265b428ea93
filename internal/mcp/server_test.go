package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectindex/internal/app"
	"github.com/dshills/projectindex/internal/config"
	"github.com/dshills/projectindex/internal/index"
	"github.com/dshills/projectindex/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(dir, "index.db")
	cfg.ProjectsRoot = filepath.Join(dir, "projects")
	cfg.Reindex.Workers = 2

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	for _, p := range []types.Project{
		{Name: "acme", Description: "Acme umbrella"},
		{Name: "acme/core", Description: "Core services", Parent: "acme"},
		{Name: "acme/core/api", Description: "Public API", Parent: "acme/core"},
	} {
		_, err := a.Store.Save(ctx, p)
		require.NoError(t, err)
	}
	return NewServer(a)
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func reindex(t *testing.T, s *Server) map[string]interface{} {
	t.Helper()
	result, err := s.handleReindexAll(context.Background(), call("reindex_all", nil))
	require.NoError(t, err)
	return decode(t, result)
}

func TestSearchProjects(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	t.Run("no search index", func(t *testing.T) {
		_, err := s.handleSearchProjects(ctx, call("search_projects", map[string]interface{}{"query": "acme"}))
		requireCode(t, err, ErrorCodeNotIndexed)
	})

	out := reindex(t, s)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(3), out["done"])

	t.Run("ancestor query", func(t *testing.T) {
		result, err := s.handleSearchProjects(ctx, call("search_projects", map[string]interface{}{
			"query": "ancestor:acme",
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, float64(2), out["count"])
		projects := out["projects"].([]interface{})
		first := projects[0].(map[string]interface{})
		assert.Equal(t, "acme/core", first["name"])
		assert.Equal(t, "acme", first["parent"])
		assert.Equal(t, "active", first["state"])
	})

	t.Run("paging", func(t *testing.T) {
		result, err := s.handleSearchProjects(ctx, call("search_projects", map[string]interface{}{
			"query": "prefix:acme",
			"start": float64(1),
			"limit": float64(1),
		}))
		require.NoError(t, err)
		projects := decode(t, result)["projects"].([]interface{})
		require.Len(t, projects, 1)
		assert.Equal(t, "acme/core", projects[0].(map[string]interface{})["name"])
	})

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing query", map[string]interface{}{}, ErrorCodeEmptyQuery},
		{"empty query", map[string]interface{}{"query": ""}, ErrorCodeEmptyQuery},
		{"bad operator", map[string]interface{}{"query": "bogus:x"}, ErrorCodeInvalidParams},
		{"negative start", map[string]interface{}{"query": "acme", "start": float64(-1)}, ErrorCodeInvalidParams},
		{"limit too large", map[string]interface{}{"query": "acme", "limit": float64(1000)}, ErrorCodeInvalidParams},
		{"zero limit", map[string]interface{}{"query": "acme", "limit": float64(0)}, ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleSearchProjects(ctx, call("search_projects", tt.args))
			requireCode(t, err, tt.code)
		})
	}
}

func TestReindexAll_InvalidVersion(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleReindexAll(context.Background(), call("reindex_all", map[string]interface{}{"version": float64(9)}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleReindexAll(context.Background(), call("reindex_all", map[string]interface{}{"version": float64(4)}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestCheckStaleness(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	reindex(t, s)

	result, err := s.handleCheckStaleness(ctx, call("check_staleness", map[string]interface{}{"project": "acme/core"}))
	require.NoError(t, err)
	out := decode(t, result)
	assert.Equal(t, false, out["stale"])
	assert.Len(t, out["indexed"], 2)

	_, err = s.app.Store.Save(ctx, types.Project{Name: "acme", Description: "Renamed umbrella"})
	require.NoError(t, err)
	s.app.Cache.Evict("acme")

	result, err = s.handleCheckStaleness(ctx, call("check_staleness", map[string]interface{}{"project": "acme/core"}))
	require.NoError(t, err)
	out = decode(t, result)
	assert.Equal(t, true, out["stale"])
	assert.Equal(t, "ref states differ", out["reason"])

	_, err = s.handleCheckStaleness(ctx, call("check_staleness", map[string]interface{}{"project": "nope"}))
	requireCode(t, err, ErrorCodeProjectNotFound)

	_, err = s.handleCheckStaleness(ctx, call("check_staleness", map[string]interface{}{"project": "/bad/"}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestIndexProject(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	reindex(t, s)

	_, err := s.app.Store.Save(ctx, types.Project{Name: "acme/web", Parent: "acme"})
	require.NoError(t, err)

	result, err := s.handleIndexProject(ctx, call("index_project", map[string]interface{}{"project": "acme/web"}))
	require.NoError(t, err)
	out := decode(t, result)
	assert.Equal(t, true, out["indexed"])

	found, err := s.app.Search(ctx, "name:acme/web", 0, 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, s.app.Store.Delete(ctx, "acme/web"))
	result, err = s.handleIndexProject(ctx, call("index_project", map[string]interface{}{"project": "acme/web"}))
	require.NoError(t, err)
	out = decode(t, result)
	assert.Equal(t, true, out["deleted"])

	found, err = s.app.Search(ctx, "name:acme/web", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = s.handleIndexProject(ctx, call("index_project", map[string]interface{}{}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestIndexProject_WritesCurrentAncestors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	reindex(t, s)

	// Warm the cache, then change the parent on disk
	_, _, err := s.app.Cache.Get(ctx, "acme")
	require.NoError(t, err)
	hash, err := s.app.Store.Save(ctx, types.Project{Name: "acme", Description: "Acme holdings"})
	require.NoError(t, err)

	_, err = s.handleIndexProject(ctx, call("index_project", map[string]interface{}{"project": "acme/core"}))
	require.NoError(t, err)

	idx := s.app.Indexes.SearchIndex()
	raw, found, err := idx.GetRaw(ctx, "acme/core", index.QueryOptions{Fields: []string{"ref_state"}})
	require.NoError(t, err)
	require.True(t, found)
	states, err := types.ParseRefStates(raw["ref_state"])
	require.NoError(t, err)
	assert.Contains(t, states["acme"], types.RefState{Project: "acme", Ref: types.RefsConfig, Hash: hash})

	result, err := s.handleCheckStaleness(ctx, call("check_staleness", map[string]interface{}{"project": "acme/core"}))
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, result)["stale"])
}

func TestActivateIndex(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleActivateIndex(ctx, call("activate_index", map[string]interface{}{"version": float64(4)}))
	require.NoError(t, err)
	out := decode(t, result)
	assert.Equal(t, true, out["activated"])
	assert.Equal(t, float64(4), out["version"])
	assert.Equal(t, 4, s.app.Indexes.SearchIndex().Schema().Version)

	_, err = s.handleActivateIndex(ctx, call("activate_index", map[string]interface{}{}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	reindex(t, s)

	result, err := s.handleGetStatus(ctx, call("get_status", nil))
	require.NoError(t, err)
	out := decode(t, result)
	assert.Equal(t, float64(3), out["projects"])
	assert.Equal(t, false, out["reindexing"])

	versions := out["versions"].([]interface{})
	require.Len(t, versions, 1)
	v5 := versions[0].(map[string]interface{})
	assert.Equal(t, float64(5), v5["version"])
	assert.Equal(t, true, v5["ready"])
	assert.Equal(t, true, v5["search"])
	assert.Equal(t, float64(3), v5["documents"])

	health := out["health"].(map[string]interface{})
	assert.Equal(t, true, health["searches_enabled"])
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := newTestServer(t)
	resp := s.mcp.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"reindex_all", "check_staleness", "index_project", "search_projects", "activate_index", "get_status"} {
		assert.Contains(t, string(raw), `"name":"`+name+`"`)
	}
}
