package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/codedesk/codedesk/internal/common/logger"
)

// Rebuilder re-wires the event bridge for a session. Implemented by the
// bridge; rebuilding is idempotent (a prior subscription is released first).
type Rebuilder interface {
	Rebuild(s *Session) error
}

// ProjectNotifier pushes project-changed notifications to the presentation
// boundary.
type ProjectNotifier interface {
	NotifyProjectChanged(info ProjectInfo)
}

// Manager owns the active session pointer and the switch protocol. The
// pointer is the only cross-session state in the process and is mutated
// exclusively here.
type Manager struct {
	registry *Registry
	bridge   Rebuilder
	notifier ProjectNotifier
	logger   *logger.Logger

	mu     sync.Mutex
	active string
}

// NewManager creates the switch coordinator.
func NewManager(reg *Registry, bridge Rebuilder, notifier ProjectNotifier, log *logger.Logger) *Manager {
	return &Manager{
		registry: reg,
		bridge:   bridge,
		notifier: notifier,
		logger:   log.WithFields(zap.String("component", "session_manager")),
	}
}

// Registry exposes the underlying session registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SwitchTo makes the session for path the active one, creating it on first
// sight. The pointer is reassigned synchronously with registry insertion, so
// it never names a path absent from the registry.
func (m *Manager) SwitchTo(ctx context.Context, path string) (*Session, error) {
	path = filepath.Clean(path)

	// Fast path: known worktree. Reassign, rewire, notify from cached state.
	if s, ok := m.registry.Get(path); ok {
		m.setActive(path)
		if err := m.bridge.Rebuild(s); err != nil {
			m.logger.Error("Bridge rebuild failed",
				zap.String("session_key", path),
				zap.Error(err))
		}
		m.notifier.NotifyProjectChanged(m.infoFor(s))
		m.logger.Debug("Switched to existing session", zap.String("session_key", path))
		return s, nil
	}

	// Slow path: push an optimistic notification from directory metadata so
	// the UI flips before the expensive creation completes.
	m.notifier.NotifyProjectChanged(ProbeProject(path))

	s, created, err := m.registry.GetOrCreate(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", path, err)
	}

	m.setActive(path)
	if err := m.bridge.Rebuild(s); err != nil {
		m.logger.Error("Bridge rebuild failed",
			zap.String("session_key", path),
			zap.Error(err))
	}

	if created {
		m.logger.Info("Switched to new session", zap.String("session_key", path))
	}

	// Initialization is awaited after the pointer and bridge are in place;
	// message traffic stays gated on readiness either way.
	if err := s.AwaitReady(ctx); err != nil {
		return s, fmt.Errorf("session %s failed to initialize: %w", path, err)
	}
	return s, nil
}

func (m *Manager) setActive(path string) {
	m.mu.Lock()
	m.active = path
	m.mu.Unlock()
}

// ActivePath returns the active session key, or "" before the first switch.
func (m *Manager) ActivePath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ActiveSession resolves the active pointer to its session.
func (m *Manager) ActiveSession() (*Session, error) {
	m.mu.Lock()
	path := m.active
	m.mu.Unlock()
	if path == "" {
		return nil, fmt.Errorf("no active session")
	}
	s, ok := m.registry.Get(path)
	if !ok {
		// The pointer is reassigned synchronously with insertion and entries
		// are only removed at full shutdown, so this indicates shutdown.
		return nil, fmt.Errorf("active session %s not found", path)
	}
	return s, nil
}

// Session resolves an explicit key, falling back to the active session when
// the key is empty.
func (m *Manager) Session(key string) (*Session, error) {
	if key == "" {
		return m.ActiveSession()
	}
	s, ok := m.registry.Get(filepath.Clean(key))
	if !ok {
		return nil, fmt.Errorf("unknown session %s", key)
	}
	return s, nil
}

// infoFor builds the fast-path notification from state already held by the
// session; no blocking I/O.
func (m *Manager) infoFor(s *Session) ProjectInfo {
	info := s.Info()
	if s.Ready() {
		info.Title = s.Engine.State().Title
	}
	return info
}
