package session

import (
	"fmt"
	"sync"

	"github.com/stillframe/marker.align/internal/align"
	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
	"github.com/stillframe/marker.align/internal/timeutil"
)

// Manager holds the live sessions for the API server.
type Manager struct {
	cfg   *config.TuningConfig
	clock timeutil.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(cfg *config.TuningConfig, clock timeutil.Clock) *Manager {
	return &Manager{
		cfg:      cfg,
		clock:    clock,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session and registers it.
func (m *Manager) Create(variant align.TemplateVariant, size geom.Size) (*Session, error) {
	s, err := New(variant, size, m.cfg, m.clock)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete removes a session from the manager.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
