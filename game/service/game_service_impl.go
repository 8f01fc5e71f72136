package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/gridtraffic/game/citygen"
	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
)

// ErrConfigNotFound is returned by config managers for unknown config names
var ErrConfigNotFound = errors.New("configuration not found")

// simulationServiceImpl implements the SimulationService interface
type simulationServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex
}

// NewSimulationService creates a new simulation service instance
func NewSimulationService(sessions SessionManager, configs ConfigManager) SimulationService {
	return &simulationServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// CreateSession creates a new simulation session. Configs without a layout
// get one generated here.
func (s *simulationServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.SimConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configName = "default"
	}

	session, err := s.sessions.Create("", configName, citygen.Prepare(config))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.WithFields(log.Fields{
		"session": session.ID,
		"config":  configName,
		"agents":  session.Sim.AgentCount(),
	}).Info("session created")

	return sessionInfo(session), nil
}

// GetSession retrieves session information
func (s *simulationServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	// write lock: the access time is updated
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sessionInfo(session), nil
}

// ListSessions returns all sessions, oldest first
func (s *simulationServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	result := make([]*SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, sessionInfo(session))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *simulationServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// Step advances one session by the requested number of ticks. Requests
// beyond MaxStepTicks are truncated; anything below one runs a single tick.
func (s *simulationServiceImpl) Step(ctx context.Context, sessionID string, ticks int) (*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	requested := ticks
	if ticks < 1 {
		ticks = 1
	}
	truncated := false
	if ticks > MaxStepTicks {
		ticks = MaxStepTicks
		truncated = true
	}

	executed := 0
	for executed < ticks {
		if err := ctx.Err(); err != nil {
			break
		}
		session.Sim.Step()
		executed++
	}

	result := stepResult(session, requested, executed)
	if truncated {
		result.Truncated = true
		result.Limit = MaxStepTicks
	}

	s.sessions.UpdateLastAccessed(sessionID)
	if err := s.sessions.Save(sessionID); err != nil {
		log.WithError(err).Warnf("failed to persist session %s after step", sessionID)
	}

	return result, nil
}

// StepAll advances every session by one tick. Used by autoplay.
func (s *simulationServiceImpl) StepAll(ctx context.Context) ([]*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	results := make([]*StepResult, 0, len(sessions))
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		session.Sim.Step()
		results = append(results, stepResult(session, 1, 1))
	}
	return results, nil
}

// Reset clears every junction of a session and rebuilds its roster
func (s *simulationServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	session.Sim.Reset()

	if err := s.sessions.Save(sessionID); err != nil {
		log.WithError(err).Warnf("failed to persist session %s after reset", sessionID)
	}

	return session.Sim.Snapshot(), nil
}

// SetDebug toggles the debug annotations of a session
func (s *simulationServiceImpl) SetDebug(ctx context.Context, sessionID string, on bool) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	session.Sim.SetDebug(on)
	return sessionInfo(session), nil
}

// GetSnapshot copies the current state of a session
func (s *simulationServiceImpl) GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	// write lock: the access time is updated
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return session.Sim.Snapshot(), nil
}

// GetJunctions renders the junction records of a session
func (s *simulationServiceImpl) GetJunctions(ctx context.Context, sessionID string) ([]engine.JunctionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	return session.Sim.Network().JunctionViews(), nil
}

// GetAgent returns a copy of one car
func (s *simulationServiceImpl) GetAgent(ctx context.Context, sessionID string, agentID int) (*engine.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	a, err := session.Sim.Agent(agentID)
	if err != nil {
		return nil, err
	}
	agent := *a
	if a.Claim != nil {
		claim := *a.Claim
		agent.Claim = &claim
	}
	return &agent, nil
}

// ListConfigs returns available simulation configurations
func (s *simulationServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific simulation configuration
func (s *simulationServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.SimConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a simulation configuration to disk
func (s *simulationServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.SimConfig) error {
	return s.configs.SaveConfig(configName, config)
}

func sessionInfo(session *Session) *SessionInfo {
	sim := session.Sim
	net := sim.Network()
	return &SessionInfo{
		ID:             session.ID,
		ConfigName:     session.ConfigName,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		Tick:           sim.Tick(),
		Cols:           net.Cols(),
		Rows:           net.Rows(),
		AgentCount:     sim.AgentCount(),
		Debug:          net.Debug(),
		States:         sim.CountStates(),
		Diagnostics:    net.Diagnostics(),
	}
}

func stepResult(session *Session, requested, executed int) *StepResult {
	sim := session.Sim
	result := &StepResult{
		SessionID:      session.ID,
		RequestedTicks: requested,
		TicksExecuted:  executed,
		Tick:           sim.Tick(),
		AgentCount:     sim.AgentCount(),
		States:         sim.CountStates(),
		Diagnostics:    sim.Network().Diagnostics(),
	}
	if err := sim.CheckInvariants(); err != nil {
		log.WithError(err).WithField("session", session.ID).Error("junction invariants violated")
		result.InvariantError = err.Error()
	}
	return result
}
