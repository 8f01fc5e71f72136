package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
	"github.com/wricardo/mcp-training/gridtraffic/game/service"
)

// Map overlay characters
const (
	markDriving   = 'o'
	markWaiting   = 'w'
	markCollision = 'X'
	markRespawned = 'r'
	markHeld      = '#'
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Grid Traffic Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Grid Traffic Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Cars drive one-way roads on a grid and contend for junctions. Each junction admits one car at a
time; the rest queue in arrival order. Stuck cars are recovered automatically and every
recovery is counted in the session diagnostics.

AVAILABLE TOOLS:
- create_session: Start a simulation from a configuration
- list_sessions / get_session: Inspect running simulations
- step: Advance a simulation by N ticks
- snapshot: Map of the city with every car overlaid
- junctions: Occupancy and queues of every junction
- agent: Full state of a single car
- describe_cell: What is at one grid cell
- reset: Clear junctions and respawn every car
- set_debug: Toggle debug annotations
- list_configs: Available configurations
- simulation_instructions: How the simulation works`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new simulation session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the config to use (see list_configs). Omit for the default city.",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all simulation sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get the summary of a session: tick, car states and diagnostics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Simulation control
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: fmt.Sprintf("Advance the simulation by a number of ticks (1-%d)", service.MaxStepTicks),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"ticks": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ticks to advance (default 1)",
					"minimum":     1,
					"maximum":     service.MaxStepTicks,
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset",
		Description: "Clear every junction and respawn all cars",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_debug",
		Description: "Turn debug annotations on or off for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"enabled": map[string]interface{}{
					"type":        "boolean",
					"description": "true to enable debug annotations",
				},
			},
			Required: []string{"session_id", "enabled"},
		},
	}, c.handleSetDebug)

	// Inspection
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "snapshot",
		Description: "Render the city map with every car overlaid, plus car states and diagnostics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleSnapshot)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "junctions",
		Description: "List every junction with its occupant, wait queue and allowed exits",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleJunctions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "agent",
		Description: "Get the full state of one car",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"agent_id": map[string]interface{}{
					"type":        "integer",
					"description": "Car ID",
				},
			},
			Required: []string{"session_id", "agent_id"},
		},
	}, c.handleAgent)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe one grid cell: its kind, road flow, junction status and the cars on it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"col": map[string]interface{}{
					"type":        "integer",
					"description": "Column of the cell (0-based)",
				},
				"row": map[string]interface{}{
					"type":        "integer",
					"description": "Row of the cell (0-based)",
				},
			},
			Required: []string{"session_id", "col", "row"},
		},
	}, c.handleDescribeCell)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available simulation configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "simulation_instructions",
		Description: "Explain the map symbols, car states and junction rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func sessionPath(sessionID string, suffix string) string {
	return fmt.Sprintf("/api/sessions/%s%s", sessionID, suffix)
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Created session\n" + formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&result, "- %s (Config: %s, Tick: %d, Cars: %d, Created: %s)\n",
			s.ID, s.ConfigName, s.Tick, s.AgentCount, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	ticks, ok := intArg(args, "ticks")
	if !ok {
		ticks = 1
	}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/step"), map[string]int{"ticks": ticks}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Message  string           `json:"message"`
		Snapshot *engine.Snapshot `json:"snapshot"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatSnapshot(response.Snapshot))), nil
}

func (c *Client) handleSetDebug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	enabled, ok := args["enabled"].(bool)
	if !ok {
		return mcp.NewToolResultError("enabled must be true or false"), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/debug"), map[string]bool{"enabled": enabled}, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Debug annotations for %s: %v", session.ID, session.Debug)), nil
}

func (c *Client) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/snapshot"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleJunctions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Count     int                   `json:"count"`
		Junctions []engine.JunctionView `json:"junctions"`
	}
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/junctions"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatJunctions(response.Junctions)), nil
}

func (c *Client) handleAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	agentID, ok := intArg(args, "agent_id")
	if !ok {
		return mcp.NewToolResultError("agent_id must be an integer"), nil
	}

	var agent engine.Agent
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, fmt.Sprintf("/agents/%d", agentID)), nil, &agent); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAgent(&agent)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	col, okCol := intArg(args, "col")
	row, okRow := intArg(args, "row")
	if !okCol || !okRow {
		return mcp.NewToolResultError("col and row must be integers"), nil
	}

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/snapshot"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	layout := snap.Config.Layout
	if row < 0 || row >= len(layout) || col < 0 || col >= len(layout[row]) {
		return mcp.NewToolResultError(fmt.Sprintf("Cell (%d, %d) is out of bounds. Grid is %d columns by %d rows",
			col, row, snap.Config.Cols, snap.Config.Rows)), nil
	}

	return mcp.NewToolResultText(describeCell(&snap, engine.Coord{Col: col, Row: row})), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		layout := "fixed layout"
		if config.Generated {
			layout = "generated city"
		}
		fmt.Fprintf(&result, "• %s (config_id: %s)\n  %s\n  Grid: %dx%d, Cars: %d, %s\n\n",
			config.Name, config.ConfigID, config.Description, config.Cols, config.Rows, config.AgentCount, layout)
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Grid Traffic Simulator - How It Works

MAP SYMBOLS:
• '>' '<' 'v' '^' : one-way road, the arrow is the direction of travel
• '+' : junction, where perpendicular roads cross
• 'B' : building
• '.' : empty ground

SNAPSHOT OVERLAY:
• 'o' driving car, 'w' waiting car, 'X' car braking to avoid a collision, 'r' car that just respawned
• '#' junction held by a car

JUNCTIONS:
• A junction admits one car at a time. Other cars wait in a first-come queue.
• When the holder leaves, the next queued car is promoted and told its exit.
• A car leaves a junction through one of its allowed exits: directions whose road flows away from it.

RECOVERY:
• A car that waits too long withdraws from the queue and crosses on an override.
• A junction held for too long without progress is force-released.
• Claims held by cars that no longer exist are evicted.
• Every recovery is counted in the diagnostics.

LIFECYCLE:
• Cars that leave the grid respawn at a boundary entry road.
• Reset clears every junction and respawns all cars with fresh IDs.

TYPICAL FLOW:
1. list_configs, then create_session
2. step with ticks=100
3. snapshot to see the city, junctions to see contention
4. agent for a car that is stuck`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatStates(states map[engine.AgentState]int) string {
	return fmt.Sprintf("driving=%d waiting=%d collision=%d respawned=%d",
		states[engine.Driving], states[engine.Waiting], states[engine.Collision], states[engine.Respawned])
}

func formatDiagnostics(d engine.Diagnostics) string {
	return fmt.Sprintf(`Diagnostics:
  stale evictions: %d, safe releases: %d, forced releases: %d, override crossings: %d
  respawns: %d, spawn failures: %d, max waiting cycles: %d
  generation defects: %d (direction fallbacks %d, heading fallbacks %d, empty-exit junctions %d)`,
		d.StaleEvictions, d.SafeReleases, d.ForcedReleases, d.OverrideCrossings,
		d.Respawns, d.SpawnFailures, d.MaxWaitingCycles,
		d.Defects(), d.DirectionFallbacks, d.HeadingFallbacks, d.EmptyExitJunctions)
}

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nGrid: %dx%d  Tick: %d  Cars: %d  Debug: %v\nStates: %s\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		session.Cols, session.Rows, session.Tick, session.AgentCount, session.Debug,
		formatStates(session.States),
		formatDiagnostics(session.Diagnostics))
}

func formatStepResult(result *service.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s advanced %d tick(s), now at tick %d\n", result.SessionID, result.TicksExecuted, result.Tick)
	if result.Truncated {
		fmt.Fprintf(&b, "Requested %d ticks, truncated to the limit of %d\n", result.RequestedTicks, result.Limit)
	}
	fmt.Fprintf(&b, "Cars: %d  States: %s\n", result.AgentCount, formatStates(result.States))
	b.WriteString(formatDiagnostics(result.Diagnostics))
	if result.InvariantError != "" {
		fmt.Fprintf(&b, "\n\nCONSISTENCY CHECK FAILED: %s", result.InvariantError)
	}
	return b.String()
}

// agentCoord maps a car's position onto the grid
func agentCoord(a engine.Agent, cellSize float64) engine.Coord {
	if cellSize <= 0 {
		return engine.Coord{Col: -1, Row: -1}
	}
	col, row := int(a.Position.X/cellSize), int(a.Position.Y/cellSize)
	if a.Position.X < 0 {
		col = -1
	}
	if a.Position.Y < 0 {
		row = -1
	}
	return engine.Coord{Col: col, Row: row}
}

func stateMark(state engine.AgentState) rune {
	switch state {
	case engine.Waiting:
		return markWaiting
	case engine.Collision:
		return markCollision
	case engine.Respawned:
		return markRespawned
	}
	return markDriving
}

// renderMap draws the layout with held junctions and cars overlaid. When
// several cars share a cell the most severe state wins.
func renderMap(snap *engine.Snapshot) []string {
	grid := make([][]rune, len(snap.Config.Layout))
	for r, line := range snap.Config.Layout {
		grid[r] = []rune(line)
	}
	inGrid := func(c engine.Coord) bool {
		return c.Row >= 0 && c.Row < len(grid) && c.Col >= 0 && c.Col < len(grid[c.Row])
	}

	for _, jv := range snap.Junctions {
		if jv.Occupied && inGrid(jv.Coord) {
			grid[jv.Coord.Row][jv.Coord.Col] = markHeld
		}
	}

	severity := map[rune]int{markDriving: 1, markRespawned: 2, markWaiting: 3, markCollision: 4}
	for _, a := range snap.Agents {
		c := agentCoord(a, snap.Config.CellSize)
		if !inGrid(c) {
			continue
		}
		mark := stateMark(a.State)
		if severity[mark] > severity[grid[c.Row][c.Col]] {
			grid[c.Row][c.Col] = mark
		}
	}

	lines := make([]string, len(grid))
	for i, row := range grid {
		lines[i] = string(row)
	}
	return lines
}

func formatSnapshot(snap *engine.Snapshot) string {
	if snap == nil {
		return "No snapshot available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tick %d  Grid %dx%d  Cars %d  Debug %v\n\n", snap.Tick, snap.Config.Cols, snap.Config.Rows, len(snap.Agents), snap.Debug)

	b.WriteString("    ")
	for col := 0; col < snap.Config.Cols; col++ {
		b.WriteByte(byte('0' + col%10))
	}
	b.WriteString("\n")
	for r, line := range renderMap(snap) {
		fmt.Fprintf(&b, "%3d %s\n", r, line)
	}
	b.WriteString("\nLegend: o driving, w waiting, X collision, r respawned, # held junction\n")
	fmt.Fprintf(&b, "States: %s\n", formatStates(snap.States))

	held := 0
	queued := 0
	for _, jv := range snap.Junctions {
		if jv.Occupied {
			held++
		}
		queued += len(jv.Queue)
	}
	fmt.Fprintf(&b, "Junctions: %d total, %d held, %d cars queued\n", len(snap.Junctions), held, queued)
	b.WriteString(formatDiagnostics(snap.Diagnostics))
	return b.String()
}

func formatJunctions(junctions []engine.JunctionView) string {
	if len(junctions) == 0 {
		return "No junctions in this layout"
	}

	sorted := append([]engine.JunctionView(nil), junctions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Queue) > len(sorted[j].Queue)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Junctions (%d), busiest first:\n\n", len(sorted))
	for _, jv := range sorted {
		holder := "free"
		if jv.Occupied && jv.Occupant != nil {
			holder = fmt.Sprintf("held by car %d", *jv.Occupant)
		} else if jv.Occupied {
			holder = "held"
		}
		exits := make([]string, len(jv.AllowedExits))
		for i, d := range jv.AllowedExits {
			exits[i] = string(d)
		}
		exitText := strings.Join(exits, ",")
		if exitText == "" {
			exitText = "NONE (generation defect)"
		}
		fmt.Fprintf(&b, "(%d,%d) %s, queue %v, exits %s\n", jv.Coord.Col, jv.Coord.Row, holder, jv.Queue, exitText)
	}
	return b.String()
}

func formatAgent(a *engine.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Car %d\n", a.ID)
	fmt.Fprintf(&b, "  State: %s\n", a.State)
	fmt.Fprintf(&b, "  Position: (%.1f, %.1f)\n", a.Position.X, a.Position.Y)
	fmt.Fprintf(&b, "  Heading: %s", a.Direction)
	if a.NextDirection != "" {
		fmt.Fprintf(&b, " (next: %s)", a.NextDirection)
	}
	fmt.Fprintf(&b, "\n  Speed: %.2f / %.2f\n", a.Speed, a.MaxSpeed)
	fmt.Fprintf(&b, "  Waiting cycles: %d\n", a.WaitingCycles)
	fmt.Fprintf(&b, "  Last moved at tick: %d\n", a.LastMovedTick)
	if a.Claim != nil {
		fmt.Fprintf(&b, "  Junction claim: (%d,%d) %s since tick %d\n",
			a.Claim.Junction.Col, a.Claim.Junction.Row, a.Claim.Status, a.Claim.Since)
	} else {
		b.WriteString("  Junction claim: none\n")
	}
	return b.String()
}

func cellDescription(ch byte) (string, string) {
	switch ch {
	case engine.CharEast:
		return "Road", "one-way, flowing east"
	case engine.CharWest:
		return "Road", "one-way, flowing west"
	case engine.CharSouth:
		return "Road", "one-way, flowing south"
	case engine.CharNorth:
		return "Road", "one-way, flowing north"
	case engine.CharJunction:
		return "Junction", "crossing of perpendicular roads, one car at a time"
	case engine.CharBuilding:
		return "Building", "not drivable"
	case engine.CharEmpty:
		return "Empty", "not drivable"
	}
	return "Unknown", "unrecognised layout character"
}

func describeCell(snap *engine.Snapshot, coord engine.Coord) string {
	ch := snap.Config.Layout[coord.Row][coord.Col]
	kind, description := cellDescription(ch)

	var b strings.Builder
	fmt.Fprintf(&b, "Cell (%d, %d):\n━━━━━━━━━━━━━━━━━━━━━━━━\nCharacter: %c\nType: %s\nDescription: %s\n",
		coord.Col, coord.Row, ch, kind, description)

	for _, jv := range snap.Junctions {
		if jv.Coord != coord {
			continue
		}
		if jv.Occupant != nil {
			fmt.Fprintf(&b, "Held by car %d\n", *jv.Occupant)
		} else {
			b.WriteString("Free\n")
		}
		fmt.Fprintf(&b, "Queue: %v\nAllowed exits: %v\n", jv.Queue, jv.AllowedExits)
	}

	var cars []string
	for _, a := range snap.Agents {
		if agentCoord(a, snap.Config.CellSize) == coord {
			cars = append(cars, fmt.Sprintf("car %d (%s, heading %s)", a.ID, a.State, a.Direction))
		}
	}
	if len(cars) == 0 {
		b.WriteString("Cars: none\n")
	} else {
		fmt.Fprintf(&b, "Cars: %s\n", strings.Join(cars, "; "))
	}
	return b.String()
}
