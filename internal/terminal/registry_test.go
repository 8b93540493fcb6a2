package terminal

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/events"
	"github.com/codedesk/codedesk/internal/events/bus"
)

// fakeHandle is an in-memory PtyHandle. Reads block until output is queued or
// the handle is closed.
type fakeHandle struct {
	mu      sync.Mutex
	output  chan []byte
	written [][]byte
	resizes [][2]uint16
	closed  bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{output: make(chan []byte, 16)}
}

func (f *fakeHandle) Read(p []byte) (int, error) {
	chunk, ok := <-f.output
	if !ok {
		return 0, errors.New("pty closed")
	}
	return copy(p, chunk), nil
}

func (f *fakeHandle) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeHandle) Resize(cols, rows uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]uint16{cols, rows})
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.output)
	}
	return nil
}

func (f *fakeHandle) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stderr"})
	require.NoError(t, err)
	return log
}

type testEnv struct {
	registry *Registry
	bus      *bus.MemoryEventBus
	handles  []*fakeHandle
	mu       sync.Mutex
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := testLogger(t)
	env := &testEnv{bus: bus.NewMemoryEventBus(log)}
	starter := func(cmd *exec.Cmd, cols, rows int) (PtyHandle, error) {
		h := newFakeHandle()
		env.mu.Lock()
		env.handles = append(env.handles, h)
		env.mu.Unlock()
		return h, nil
	}
	env.registry = NewRegistry("/work/repo", env.bus, log, WithStarter(starter), WithShell("/bin/sh"))
	t.Cleanup(env.bus.Close)
	return env
}

func (e *testEnv) handle(i int) *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[i]
}

func (e *testEnv) subscribe(t *testing.T, subject string) chan *bus.Event {
	t.Helper()
	ch := make(chan *bus.Event, 16)
	_, err := e.bus.Subscribe(subject, func(ctx context.Context, ev *bus.Event) error {
		ch <- ev
		return nil
	})
	require.NoError(t, err)
	return ch
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCreatePublishesOutput(t *testing.T) {
	env := newTestEnv(t)
	outputs := env.subscribe(t, events.TerminalOutput)

	id, err := env.registry.Create(80, 24, "/work/repo")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, env.registry.LiveCount())

	env.handle(0).output <- []byte("prompt$ ")

	select {
	case ev := <-outputs:
		assert.Equal(t, events.TerminalOutput, ev.Type)
		assert.Equal(t, id, ev.Data["terminal_id"])
		assert.Equal(t, "/work/repo", ev.Data["session_key"])
		assert.Equal(t, "prompt$ ", ev.Data["data"])
	case <-time.After(time.Second):
		t.Fatal("no output event")
	}
}

func TestExitPublishesAndDeregisters(t *testing.T) {
	env := newTestEnv(t)
	exits := env.subscribe(t, events.TerminalExit)

	id, err := env.registry.Create(80, 24, "/work/repo")
	require.NoError(t, err)

	// Closing the handle ends the read loop as if the process exited.
	require.NoError(t, env.handle(0).Close())

	select {
	case ev := <-exits:
		assert.Equal(t, id, ev.Data["terminal_id"])
		assert.Contains(t, ev.Data, "exit_code")
	case <-time.After(time.Second):
		t.Fatal("no exit event")
	}

	waitFor(t, func() bool { return env.registry.LiveCount() == 0 }, "terminal not deregistered after exit")
}

func TestWriteReachesHandle(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.registry.Create(80, 24, "/work/repo")
	require.NoError(t, err)

	env.registry.Write(id, []byte("ls\n"))

	h := env.handle(0)
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.written, 1)
	assert.Equal(t, []byte("ls\n"), h.written[0])
}

func TestWriteUnknownIDIsNoop(t *testing.T) {
	env := newTestEnv(t)
	// Must not panic or create anything.
	env.registry.Write("no-such-terminal", []byte("data"))
	assert.Equal(t, 0, env.registry.LiveCount())
}

func TestResize(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.registry.Create(80, 24, "/work/repo")
	require.NoError(t, err)

	env.registry.Resize(id, 120, 40)
	env.registry.Resize("no-such-terminal", 1, 1)

	h := env.handle(0)
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.resizes, 1)
	assert.Equal(t, [2]uint16{120, 40}, h.resizes[0])
}

func TestDestroyIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.registry.Create(80, 24, "/work/repo")
	require.NoError(t, err)
	require.Equal(t, 1, env.registry.LiveCount())

	env.registry.Destroy(id)
	assert.Equal(t, 0, env.registry.LiveCount())
	assert.True(t, env.handle(0).isClosed())

	// Second destroy and unknown id are both no-ops.
	env.registry.Destroy(id)
	env.registry.Destroy("no-such-terminal")
}

func TestCloseAllKillsEverything(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.Create(80, 24, "/work/repo")
	require.NoError(t, err)
	_, err = env.registry.Create(80, 24, "/work/repo")
	require.NoError(t, err)
	require.Equal(t, 2, env.registry.LiveCount())

	env.registry.CloseAll()
	assert.Equal(t, 0, env.registry.LiveCount())
	assert.True(t, env.handle(0).isClosed())
	assert.True(t, env.handle(1).isClosed())

	// CloseAll on an empty registry is a no-op.
	env.registry.CloseAll()
}

func TestCreateSpawnFailurePropagates(t *testing.T) {
	log := testLogger(t)
	b := bus.NewMemoryEventBus(log)
	defer b.Close()

	starter := func(cmd *exec.Cmd, cols, rows int) (PtyHandle, error) {
		return nil, errors.New("pty allocation failed")
	}
	r := NewRegistry("/work/repo", b, log, WithStarter(starter), WithShell("/bin/sh"))

	_, err := r.Create(80, 24, "/work/repo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to spawn terminal")
	assert.Equal(t, 0, r.LiveCount())
}
