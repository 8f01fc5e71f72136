package service

import (
	"time"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
)

// MaxStepTicks caps a single Step call
const MaxStepTicks = 1000

// SessionInfo provides information about a simulation session
type SessionInfo struct {
	ID             string                    `json:"id"`
	ConfigName     string                    `json:"config_name"`
	CreatedAt      time.Time                 `json:"created_at"`
	LastAccessedAt time.Time                 `json:"last_accessed_at"`
	Tick           int64                     `json:"tick"`
	Cols           int                       `json:"cols"`
	Rows           int                       `json:"rows"`
	AgentCount     int                       `json:"agent_count"`
	Debug          bool                      `json:"debug"`
	States         map[engine.AgentState]int `json:"states"`
	Diagnostics    engine.Diagnostics        `json:"diagnostics"`
}

// StepResult contains the result of advancing a session
type StepResult struct {
	SessionID      string                    `json:"session_id"`
	RequestedTicks int                       `json:"requested_ticks"`
	TicksExecuted  int                       `json:"ticks_executed"`
	Truncated      bool                      `json:"truncated,omitempty"`
	Limit          int                       `json:"limit,omitempty"`
	Tick           int64                     `json:"tick"`
	AgentCount     int                       `json:"agent_count"`
	States         map[engine.AgentState]int `json:"states"`
	Diagnostics    engine.Diagnostics        `json:"diagnostics"`
	// InvariantError is set when a consistency check failed after stepping
	InvariantError string `json:"invariant_error,omitempty"`
}

// ConfigInfo provides information about available configurations
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // Identifier used for session creation (filename without extension)
	Name        string `json:"name"`
	Description string `json:"description"`
	Cols        int    `json:"cols"`
	Rows        int    `json:"rows"`
	AgentCount  int    `json:"agent_count"`
	Generated   bool   `json:"generated"` // true when the layout is generated at session creation
}
