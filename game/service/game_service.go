package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
)

// SimulationService defines all simulation operations shared by the transports
type SimulationService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation Control
	Step(ctx context.Context, sessionID string, ticks int) (*StepResult, error)
	StepAll(ctx context.Context) ([]*StepResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	SetDebug(ctx context.Context, sessionID string, on bool) (*SessionInfo, error)

	// Simulation State
	GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	GetJunctions(ctx context.Context, sessionID string) ([]engine.JunctionView, error)
	GetAgent(ctx context.Context, sessionID string, agentID int) (*engine.Agent, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.SimConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.SimConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configName string, config *engine.SimConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles simulation configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.SimConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.SimConfig
	SaveConfig(name string, config *engine.SimConfig) error
}

// Session represents one running simulation
type Session struct {
	ID             string
	ConfigName     string
	Sim            *engine.Simulation
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
