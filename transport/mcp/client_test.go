package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/gridtraffic/api"
	"github.com/wricardo/mcp-training/gridtraffic/game/config"
	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
	"github.com/wricardo/mcp-training/gridtraffic/game/service"
	"github.com/wricardo/mcp-training/gridtraffic/game/session"
)

var testLayout = []string{
	"....v...v...",
	"....v...v...",
	">>>>+>>>+>>>",
	"....v...v...",
	"....v...v...",
	"....vBB.v...",
	"....vBB.v...",
	"....v...v...",
	"<<<<+<<<+<<<",
	"....v...v...",
	"....v...v...",
	"....v...v...",
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

// newBackend starts the REST API over the real service layers
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	prev := logrus.StandardLogger().Out
	logrus.SetOutput(io.Discard)
	t.Cleanup(func() { logrus.SetOutput(prev) })

	dir := t.TempDir()
	data, err := engine.EncodeSimConfig(&engine.SimConfig{
		Name:        "Grid",
		Description: "Two by two junctions",
		Cols:        12,
		Rows:        12,
		CellSize:    20,
		AgentCount:  8,
		Seed:        5,
		Layout:      testLayout,
	}, ".json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid.json"), data, 0644))

	configs, err := config.NewManager(dir)
	require.NoError(t, err)
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	svc := service.NewSimulationService(session.NewManager(engine.WithLogger(quiet)), configs)
	server := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "abc", "tick": 12})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response service.SessionInfo
	require.NoError(t, client.apiCall(context.Background(), "GET", "/api/sessions/abc", nil, &response))
	assert.Equal(t, "abc", response.ID)
	assert.Equal(t, int64(12), response.Tick)
}

func TestClient_apiCall_Errors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		client := NewClient("http://invalid-url-that-does-not-exist:9999")
		assert.Error(t, client.apiCall(context.Background(), "GET", "/api", nil, nil))
	})

	t.Run("plain status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API error")
	})

	t.Run("error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
		require.Error(t, err)
		assert.Equal(t, "session not found", err.Error())
	})
}

func TestClient_ToolsAgainstServer(t *testing.T) {
	backend := newBackend(t)
	client := NewClient(backend.URL)
	ctx := context.Background()

	result, err := client.handleListConfigs(ctx, callRequest("list_configs", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "config_id: grid")

	result, err = client.handleCreateSession(ctx, callRequest("create_session", map[string]interface{}{"config_id": "grid"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var sessionID string
	for _, line := range strings.Split(resultText(t, result), "\n") {
		if strings.HasPrefix(line, "Session: ") {
			sessionID = strings.TrimPrefix(line, "Session: ")
		}
	}
	require.NotEmpty(t, sessionID)

	result, err = client.handleStep(ctx, callRequest("step", map[string]interface{}{"session_id": sessionID, "ticks": float64(40)}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "advanced 40 tick(s), now at tick 40")
	assert.NotContains(t, text, "CONSISTENCY CHECK FAILED")

	result, err = client.handleSnapshot(ctx, callRequest("snapshot", map[string]interface{}{"session_id": sessionID}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "Tick 40")
	assert.Contains(t, text, "Junctions: 4 total")

	result, err = client.handleJunctions(ctx, callRequest("junctions", map[string]interface{}{"session_id": sessionID}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Junctions (4)")

	result, err = client.handleDescribeCell(ctx, callRequest("describe_cell", map[string]interface{}{
		"session_id": sessionID, "col": float64(4), "row": float64(2),
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Type: Junction")

	result, err = client.handleDescribeCell(ctx, callRequest("describe_cell", map[string]interface{}{
		"session_id": sessionID, "col": float64(40), "row": float64(2),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = client.handleAgent(ctx, callRequest("agent", map[string]interface{}{"session_id": sessionID, "agent_id": float64(-5)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = client.handleSetDebug(ctx, callRequest("set_debug", map[string]interface{}{"session_id": sessionID, "enabled": true}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "true")

	result, err = client.handleReset(ctx, callRequest("reset", map[string]interface{}{"session_id": sessionID}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Simulation reset successfully")

	result, err = client.handleListSessions(ctx, callRequest("list_sessions", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), sessionID)

	result, err = client.handleGetSession(ctx, callRequest("get_session", map[string]interface{}{"session_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRenderMap(t *testing.T) {
	occupant := 2
	snap := &engine.Snapshot{
		Config: engine.SimConfig{Cols: 12, Rows: 12, CellSize: 20, Layout: testLayout},
		Agents: []engine.Agent{
			{ID: 1, Position: engine.Vec{X: 10, Y: 50}, State: engine.Driving},
			{ID: 2, Position: engine.Vec{X: 90, Y: 50}, State: engine.Driving},
			{ID: 3, Position: engine.Vec{X: 130, Y: 50}, State: engine.Waiting},
			{ID: 4, Position: engine.Vec{X: 135, Y: 55}, State: engine.Collision},
			{ID: 5, Position: engine.Vec{X: -10, Y: 50}, State: engine.Waiting},
		},
		Junctions: []engine.JunctionView{
			{Coord: engine.Coord{Col: 8, Row: 2}, Occupied: true, Occupant: &occupant},
		},
	}

	lines := renderMap(snap)
	require.Len(t, lines, 12)
	assert.Equal(t, "o>>>o>X>#>>>", lines[2], "collision outranks waiting in a shared cell")
	assert.Equal(t, testLayout[0], lines[0], "untouched rows keep the layout")
}

func TestFormatJunctions(t *testing.T) {
	occupant := 7
	text := formatJunctions([]engine.JunctionView{
		{Coord: engine.Coord{Col: 1, Row: 1}, AllowedExits: []engine.Direction{engine.East}},
		{Coord: engine.Coord{Col: 4, Row: 2}, Occupied: true, Occupant: &occupant, Queue: []int{3, 9}, AllowedExits: []engine.Direction{}},
	})

	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "(4,2) held by car 7")
	assert.Contains(t, lines[2], "NONE (generation defect)")
	assert.Contains(t, lines[3], "(1,1) free")

	assert.Equal(t, "No junctions in this layout", formatJunctions(nil))
}

func TestFormatStepResult(t *testing.T) {
	text := formatStepResult(&service.StepResult{
		SessionID:      "abc",
		RequestedTicks: 5000,
		TicksExecuted:  service.MaxStepTicks,
		Truncated:      true,
		Limit:          service.MaxStepTicks,
		Tick:           1000,
		States:         map[engine.AgentState]int{engine.Driving: 5, engine.Waiting: 2},
		InvariantError: "junction (1,1) held by unknown car",
	})

	assert.Contains(t, text, "truncated to the limit of 1000")
	assert.Contains(t, text, "driving=5 waiting=2")
	assert.Contains(t, text, "CONSISTENCY CHECK FAILED")
}

func TestClient_handleInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleInstructions(context.Background(), callRequest("simulation_instructions", map[string]interface{}{}))
	require.NoError(t, err)

	text := resultText(t, result)
	for _, section := range []string{"MAP SYMBOLS:", "SNAPSHOT OVERLAY:", "JUNCTIONS:", "RECOVERY:", "LIFECYCLE:"} {
		assert.Contains(t, text, section)
	}
}
