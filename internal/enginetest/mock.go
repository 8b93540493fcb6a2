// Package enginetest provides a scripted in-process agent engine used by the
// development build and by tests. It emits deterministic event sequences
// instead of calling a model.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/codedesk/codedesk/internal/engine"
)

// Mock is a scripted engine.Engine implementation.
type Mock struct {
	Workdir string

	mu          sync.Mutex
	initialized bool
	subscribers map[engine.SubscriptionID]func(engine.Event)
	state       engine.State
	threadID    string

	// InitErr, when set, is returned by Init.
	InitErr error

	// InitStarted is closed when Init is entered; InitRelease, when non-nil,
	// blocks Init until closed. Used to exercise the in-flight creation path.
	InitStarted chan struct{}
	InitRelease chan struct{}

	// SendStarted is closed when SendMessage is entered; SendRelease, when
	// non-nil, blocks SendMessage until closed. Used to verify that aborts
	// are not queued behind an in-flight send.
	SendStarted chan struct{}
	SendRelease chan struct{}

	// Recorded calls.
	SentMessages []string
	Steered      []string
	Aborted      int
	Approvals    map[string]bool
	Patches      []engine.StatePatch
}

// New creates a mock engine for the given worktree.
func New(workdir string) *Mock {
	return &Mock{
		Workdir:     workdir,
		subscribers: make(map[engine.SubscriptionID]func(engine.Event)),
		Approvals:   make(map[string]bool),
		InitStarted: make(chan struct{}),
		SendStarted: make(chan struct{}),
	}
}

// Factory builds Mock engines and retains them for inspection.
type Factory struct {
	mu      sync.Mutex
	Engines map[string]*Mock

	// Configure, when set, is called on each new engine before it is returned.
	Configure func(*Mock)
}

// NewFactory creates a mock engine factory.
func NewFactory() *Factory {
	return &Factory{Engines: make(map[string]*Mock)}
}

// New implements engine.Factory.
func (f *Factory) New(workdir string) (engine.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := New(workdir)
	if f.Configure != nil {
		f.Configure(m)
	}
	f.Engines[workdir] = m
	return m, nil
}

// Get returns the engine created for a worktree, if any.
func (f *Factory) Get(workdir string) *Mock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Engines[workdir]
}

// Init implements engine.Engine.
func (m *Mock) Init(ctx context.Context) error {
	m.mu.Lock()
	started := m.InitStarted
	release := m.InitRelease
	m.mu.Unlock()

	safeClose(started)
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.InitErr != nil {
		return m.InitErr
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// Subscribe implements engine.Engine.
func (m *Mock) Subscribe(fn func(engine.Event)) (engine.SubscriptionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := engine.SubscriptionID(uuid.New().String())
	m.subscribers[id] = fn
	return id, nil
}

// Unsubscribe implements engine.Engine.
func (m *Mock) Unsubscribe(id engine.SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, id)
}

// SubscriberCount returns the number of live subscriptions.
func (m *Mock) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Emit delivers an event to every live subscriber, synchronously.
func (m *Mock) Emit(ev engine.Event) {
	m.mu.Lock()
	fns := make([]func(engine.Event), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Sent returns a snapshot of the delivered message contents. Safe to poll
// while a send is in flight.
func (m *Mock) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.SentMessages...)
}

// SteerLog returns a snapshot of the delivered steer contents.
func (m *Mock) SteerLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Steered...)
}

// AbortCount returns the number of abort signals received.
func (m *Mock) AbortCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Aborted
}

// SendMessage implements engine.Engine.
func (m *Mock) SendMessage(ctx context.Context, content string) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return fmt.Errorf("engine not initialized")
	}
	started := m.SendStarted
	release := m.SendRelease
	if m.threadID == "" {
		m.threadID = uuid.New().String()
	}
	m.SentMessages = append(m.SentMessages, content)
	thread := m.threadID
	m.mu.Unlock()

	safeClose(started)
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.Emit(engine.Event{Kind: engine.KindMessage, ThreadID: thread, Text: "ack: " + content})
	m.Emit(engine.Event{Kind: engine.KindCompleted, ThreadID: thread})
	return nil
}

// Steer implements engine.Engine.
func (m *Mock) Steer(ctx context.Context, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return fmt.Errorf("engine not initialized")
	}
	m.Steered = append(m.Steered, content)
	return nil
}

// Abort implements engine.Engine.
func (m *Mock) Abort() {
	m.mu.Lock()
	m.Aborted++
	thread := m.threadID
	m.mu.Unlock()
	m.Emit(engine.Event{Kind: engine.KindAborted, ThreadID: thread})
}

// RespondToApproval implements engine.Engine.
func (m *Mock) RespondToApproval(requestID string, allow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Approvals[requestID] = allow
}

// State implements engine.Engine.
func (m *Mock) State() engine.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	st.ThreadID = m.threadID
	return st
}

// SetState replaces the state snapshot (test setup helper).
func (m *Mock) SetState(st engine.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
}

// PatchState implements engine.Engine.
func (m *Mock) PatchState(ctx context.Context, patch engine.StatePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Patches = append(m.Patches, patch)
	if patch.Title != nil {
		m.state.Title = *patch.Title
	}
	if patch.ModelID != nil {
		m.state.ModelID = *patch.ModelID
	}
	if patch.LinkedIssue != nil {
		m.state.LinkedIssue = *patch.LinkedIssue
	}
	return nil
}

// CurrentThreadID implements engine.Engine.
func (m *Mock) CurrentThreadID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threadID
}

func safeClose(ch chan struct{}) {
	if ch == nil {
		return
	}
	defer func() { _ = recover() }()
	close(ch)
}
