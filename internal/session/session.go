// Package session implements the multi-session orchestration core: one
// isolated execution context per worktree, the registry owning their
// lifecycle, and the active-session switch protocol.
package session

import (
	"context"
	"sync"

	"github.com/codedesk/codedesk/internal/engine"
	"github.com/codedesk/codedesk/internal/permission"
	"github.com/codedesk/codedesk/internal/terminal"
	"github.com/codedesk/codedesk/internal/toolgw"
)

// Session is one isolated execution context bound to exactly one worktree.
// It exclusively owns its engine handle, tool gateway, terminal registry and
// permission state; nothing here is shared across sessions.
type Session struct {
	// Key is the absolute worktree path. Immutable after creation.
	Key string

	Engine    engine.Engine
	Tools     toolgw.Gateway
	Terminals *terminal.Registry

	// info is the project summary probed once at creation. The switch fast
	// path reuses it instead of touching the filesystem.
	info ProjectInfo

	mu     sync.Mutex
	rules  permission.Rules
	grants permission.Grants

	// subID holds the at-most-one live event stream subscription.
	subID  engine.SubscriptionID
	hasSub bool

	// ready gates message traffic until the engine's async init completes.
	ready   chan struct{}
	initErr error
}

func newSession(key string, eng engine.Engine, gw toolgw.Gateway, terms *terminal.Registry, rules permission.Rules, info ProjectInfo) *Session {
	return &Session{
		Key:       key,
		Engine:    eng,
		Tools:     gw,
		Terminals: terms,
		info:      info,
		rules:     rules.Clone(),
		grants:    make(permission.Grants),
		ready:     make(chan struct{}),
	}
}

// Info returns the project summary cached at creation.
func (s *Session) Info() ProjectInfo {
	return s.info
}

// markReady releases all traffic gated on initialization.
func (s *Session) markReady(err error) {
	s.mu.Lock()
	s.initErr = err
	s.mu.Unlock()
	close(s.ready)
}

// AwaitReady blocks until the session's engine initialization has completed.
// Commands issued during initialization park here, so a partially
// initialized engine never sees message traffic.
func (s *Session) AwaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether initialization has completed, without blocking.
func (s *Session) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// ResolveTool runs the permission engine against this session's rules and
// grants.
func (s *Session) ResolveTool(tool string) permission.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return permission.Resolve(tool, s.rules, s.grants)
}

// Grant force-allows a category for the remaining process lifetime.
func (s *Session) Grant(c permission.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[c] = struct{}{}
}

// ResetGrants clears the grant set without touching the rules table.
func (s *Session) ResetGrants() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = make(permission.Grants)
}

// SetRule updates the standing policy for one category.
func (s *Session) SetRule(c permission.Category, d permission.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[c] = d
}

// ApplyPreset replaces the whole rules table with the selected preset.
func (s *Session) ApplyPreset(presets permission.Presets, permissive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = presets.Select(permissive)
}

// Rules returns a copy of the current rules table.
func (s *Session) Rules() permission.Rules {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.Clone()
}

// SetSubscription stores the live subscription token. The previous token, if
// any, must have been taken first.
func (s *Session) SetSubscription(id engine.SubscriptionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subID = id
	s.hasSub = true
}

// TakeSubscription removes and returns the live subscription token.
func (s *Session) TakeSubscription() (engine.SubscriptionID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSub {
		return "", false
	}
	id := s.subID
	s.subID = ""
	s.hasSub = false
	return id, true
}
