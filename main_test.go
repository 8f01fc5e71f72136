package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
	"github.com/wricardo/mcp-training/gridtraffic/transport/mcp"
	"github.com/wricardo/mcp-training/gridtraffic/transport/websocket"
)

var gridLayout = []string{
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

func gridConfig() *engine.SimConfig {
	return &engine.SimConfig{
		Name:       "Grid",
		Cols:       12,
		Rows:       12,
		CellSize:   20,
		AgentCount: 8,
		Seed:       4,
		Layout:     gridLayout,
	}
}

func quietLogs(t *testing.T) {
	t.Helper()
	prev := logrus.StandardLogger().Out
	logrus.SetOutput(io.Discard)
	t.Cleanup(func() { logrus.SetOutput(prev) })
}

// testDirs creates a config directory holding grid.json and an empty sessions directory
func testDirs(t *testing.T) (string, string) {
	t.Helper()
	quietLogs(t)

	root := t.TempDir()
	configDir := filepath.Join(root, "configs")
	require.NoError(t, os.Mkdir(configDir, 0755))
	data, err := engine.EncodeSimConfig(gridConfig(), ".json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "grid.json"), data, 0644))
	return configDir, filepath.Join(root, "sessions")
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "Grid Traffic Simulator", AppName)
}

func TestNewApp(t *testing.T) {
	app := newApp()

	names := make([]string, 0, len(app.Commands))
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"serve", "mcp", "run", "view"}, names)
	assert.Equal(t, Version, app.Version)
}

func TestInitializeServices(t *testing.T) {
	configDir, sessionsDir := testDirs(t)

	svc, sessions, err := initializeServices(configDir, sessionsDir)
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Zero(t, sessions.Count())

	info, err := svc.CreateSession(context.Background(), "grid")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(sessionsDir, info.ID+".json"))

	// A second start picks up the persisted session
	svc, sessions, err = initializeServices(configDir, sessionsDir)
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.Count())
	_, err = svc.GetSession(context.Background(), info.ID)
	assert.NoError(t, err)
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	_, _, err := initializeServices("/non/existent/path", t.TempDir())
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	configDir, sessionsDir := testDirs(t)

	err := newApp().Run(context.Background(), []string{
		"gridtraffic", "--config-dir", configDir, "--sessions-dir", sessionsDir,
		"run", "--config", "grid", "--ticks", "20", "--check",
	})
	assert.NoError(t, err)

	err = newApp().Run(context.Background(), []string{
		"gridtraffic", "--config-dir", configDir, "run", "--config", "missing",
	})
	assert.Error(t, err)
}

func TestRunHeadless(t *testing.T) {
	quietLogs(t)
	sim, err := engine.NewSimulation(gridConfig())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runHeadless(context.Background(), &out, sim, 200, true))

	text := out.String()
	assert.Contains(t, text, "Config: Grid (12x12)")
	assert.Contains(t, text, "Ticks: 200 in")
	assert.Contains(t, text, "Cars: 8")
	assert.NotContains(t, text, "Data defects")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, runHeadless(ctx, io.Discard, sim, 10, false), context.Canceled)
	assert.Equal(t, int64(200), sim.Tick())
}

func TestMCPHandler(t *testing.T) {
	handler := mcpHandler(mcp.NewClient("http://localhost:0"))

	t.Run("rejects GET", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/mcp", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("initialize", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Body.String(), AppName)
	})

	t.Run("tools list", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, rr.Code)
		for _, tool := range []string{"create_session", "step", "snapshot", "junctions"} {
			assert.Contains(t, rr.Body.String(), `"`+tool+`"`)
		}
	})
}

func TestAutoplayTick(t *testing.T) {
	configDir, sessionsDir := testDirs(t)
	svc, _, err := initializeServices(configDir, sessionsDir)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.CreateSession(ctx, "grid")
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, "grid")
	require.NoError(t, err)

	hub := websocket.NewHub()
	for i := 0; i < 3; i++ {
		autoplayTick(ctx, svc, hub)
	}

	for _, id := range []string{first.ID, second.ID} {
		info, err := svc.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(3), info.Tick)
	}
}

func TestAPIAvailable(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer healthy.Close()
	assert.True(t, apiAvailable(context.Background(), healthy.URL))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()
	assert.False(t, apiAvailable(context.Background(), broken.URL))

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	assert.False(t, apiAvailable(context.Background(), closed.URL))
}
