package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/engine"
	"github.com/codedesk/codedesk/internal/events/bus"
	"github.com/codedesk/codedesk/internal/permission"
	"github.com/codedesk/codedesk/internal/terminal"
	"github.com/codedesk/codedesk/internal/toolgw"
)

// Registry maps worktree paths to sessions and owns their lifecycle. A path
// is inserted at most once per process lifetime; sessions persist in the
// background until full shutdown.
type Registry struct {
	engines  engine.Factory
	gateways toolgw.Factory
	bus      bus.EventBus
	presets  permission.Presets
	defaults permission.Rules
	shell    string
	logger   *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry(engines engine.Factory, gateways toolgw.Factory, b bus.EventBus, presets permission.Presets, permissive bool, shell string, log *logger.Logger) *Registry {
	return &Registry{
		engines:  engines,
		gateways: gateways,
		bus:      b,
		presets:  presets,
		defaults: presets.Select(permissive),
		shell:    shell,
		logger:   log.WithFields(zap.String("component", "session_registry")),
		sessions: make(map[string]*Session),
	}
}

// Presets returns the policy preset tables in effect.
func (r *Registry) Presets() permission.Presets {
	return r.presets
}

// Get returns the session for a path, if present.
func (r *Registry) Get(path string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[path]
	return s, ok
}

// GetOrCreate returns the session for a path, building it on first sight.
// The new session is inserted before its engine initialization completes, so
// a concurrent switch back to the same path reuses the in-flight session
// instead of double-creating it. Callers gate message traffic on AwaitReady.
func (r *Registry) GetOrCreate(ctx context.Context, path string) (*Session, bool, error) {
	r.mu.RLock()
	if s, ok := r.sessions[path]; ok {
		r.mu.RUnlock()
		return s, false, nil
	}
	r.mu.RUnlock()

	// Probe outside the lock; it reads the worktree's .git metadata.
	info := ProbeProject(path)

	r.mu.Lock()
	if s, ok := r.sessions[path]; ok {
		r.mu.Unlock()
		return s, false, nil
	}

	eng, err := r.engines.New(path)
	if err != nil {
		r.mu.Unlock()
		return nil, false, fmt.Errorf("failed to create engine for %s: %w", path, err)
	}
	gw, err := r.gateways.New(path)
	if err != nil {
		r.mu.Unlock()
		return nil, false, fmt.Errorf("failed to create tool gateway for %s: %w", path, err)
	}

	terms := terminal.NewRegistry(path, r.bus, r.logger, terminal.WithShell(r.shell))
	s := newSession(path, eng, gw, terms, r.defaults, info)
	r.sessions[path] = s
	r.mu.Unlock()

	r.logger.Info("Session created", zap.String("session_key", path))

	go r.initialize(s)
	return s, true, nil
}

// initialize runs the engine init and tool gateway connect, then releases
// traffic gated on readiness.
func (r *Registry) initialize(s *Session) {
	ctx := context.Background()

	err := s.Engine.Init(ctx)
	if err != nil {
		r.logger.Error("Engine initialization failed",
			zap.String("session_key", s.Key),
			zap.Error(err))
	} else if s.Tools.HasServers() {
		if gwErr := s.Tools.Init(ctx); gwErr != nil {
			// Tool servers are optional; the session stays usable without them.
			r.logger.Warn("Tool gateway connect failed",
				zap.String("session_key", s.Key),
				zap.Error(gwErr))
		}
	}

	s.markReady(err)
}

// Teardown releases a session's event subscription, kills its terminals,
// disconnects its tool gateway and removes the entry. Disconnect failures
// are logged, not propagated.
func (r *Registry) Teardown(ctx context.Context, path string) {
	r.mu.Lock()
	s, ok := r.sessions[path]
	if ok {
		delete(r.sessions, path)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	if id, had := s.TakeSubscription(); had {
		s.Engine.Unsubscribe(id)
	}

	s.Terminals.CloseAll()

	if err := s.Tools.Disconnect(ctx); err != nil {
		r.logger.Warn("Tool gateway disconnect failed",
			zap.String("session_key", path),
			zap.Error(err))
	}

	r.logger.Info("Session torn down", zap.String("session_key", path))
}

// TeardownAll tears down every session. Called on process shutdown.
func (r *Registry) TeardownAll(ctx context.Context) {
	for _, path := range r.Paths() {
		r.Teardown(ctx, path)
	}
}

// Paths returns the registered worktree paths.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.sessions))
	for p := range r.sessions {
		paths = append(paths, p)
	}
	return paths
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
