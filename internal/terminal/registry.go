// Package terminal owns the OS pseudo-terminal subprocesses of one session.
// Output and exit are forwarded on the event bus, tagged with the owning
// session key and terminal id.
package terminal

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/events"
	"github.com/codedesk/codedesk/internal/events/bus"
)

// PtyHandle abstracts the spawned PTY for I/O, resize and close.
type PtyHandle interface {
	io.ReadWriteCloser
	Resize(cols, rows uint16) error
}

// Starter spawns a command attached to a PTY. Overridable for tests.
type Starter func(cmd *exec.Cmd, cols, rows int) (PtyHandle, error)

// Registry holds the live terminal processes of one session.
type Registry struct {
	sessionKey string
	shell      string
	shellArgs  []string
	bus        bus.EventBus
	logger     *logger.Logger
	start      Starter

	mu    sync.Mutex
	procs map[string]*process
}

type process struct {
	id     string
	cmd    *exec.Cmd
	handle PtyHandle

	mu     sync.Mutex
	killed bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithStarter overrides the PTY spawn function.
func WithStarter(s Starter) Option {
	return func(r *Registry) { r.start = s }
}

// WithShell overrides the detected shell.
func WithShell(shell string) Option {
	return func(r *Registry) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// NewRegistry creates an empty terminal registry for a session.
func NewRegistry(sessionKey string, b bus.EventBus, log *logger.Logger, opts ...Option) *Registry {
	shell, args := detectShell()
	r := &Registry{
		sessionKey: sessionKey,
		shell:      shell,
		shellArgs:  args,
		bus:        b,
		logger:     log.WithFields(zap.String("component", "terminal"), zap.String("session_key", sessionKey)),
		start:      startPTYWithSize,
		procs:      make(map[string]*process),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create spawns a new terminal process and returns its generated id.
// Spawn failure propagates synchronously; there is no retry.
func (r *Registry) Create(cols, rows int, cwd string) (string, error) {
	id := uuid.New().String()

	cmd := exec.Command(r.shell, r.shellArgs...)
	cmd.Dir = cwd
	cmd.Env = append(cmd.Environ(), "TERM=xterm-256color")

	handle, err := r.start(cmd, cols, rows)
	if err != nil {
		return "", fmt.Errorf("failed to spawn terminal: %w", err)
	}

	p := &process{id: id, cmd: cmd, handle: handle}

	r.mu.Lock()
	r.procs[id] = p
	r.mu.Unlock()

	r.logger.Info("Terminal created",
		zap.String("terminal_id", id),
		zap.String("shell", r.shell),
		zap.String("cwd", cwd))

	go r.readLoop(p)
	return id, nil
}

// readLoop forwards PTY output until the process exits, then publishes the
// exit event and deregisters the terminal.
func (r *Registry) readLoop(p *process) {
	buf := make([]byte, 32*1024)
	for {
		n, err := p.handle.Read(buf)
		if n > 0 {
			r.publish(events.TerminalOutput, map[string]interface{}{
				"session_key": r.sessionKey,
				"terminal_id": p.id,
				"data":        string(buf[:n]),
			})
		}
		if err != nil {
			break
		}
	}

	exitCode := 0
	if p.cmd != nil {
		if err := p.cmd.Wait(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else {
				exitCode = -1
			}
		}
	}

	r.publish(events.TerminalExit, map[string]interface{}{
		"session_key": r.sessionKey,
		"terminal_id": p.id,
		"exit_code":   exitCode,
	})

	r.mu.Lock()
	delete(r.procs, p.id)
	r.mu.Unlock()

	r.logger.Debug("Terminal exited",
		zap.String("terminal_id", p.id),
		zap.Int("exit_code", exitCode))
}

func (r *Registry) publish(eventType string, data map[string]interface{}) {
	ev := bus.NewEvent(eventType, "terminal", data)
	if err := r.bus.Publish(context.Background(), eventType, ev); err != nil {
		r.logger.Warn("Failed to publish terminal event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// Write sends input to a terminal. Unknown ids are ignored; the caller may
// race with process exit.
func (r *Registry) Write(id string, data []byte) {
	r.mu.Lock()
	p, ok := r.procs[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	if _, err := p.handle.Write(data); err != nil {
		r.logger.Debug("Terminal write failed",
			zap.String("terminal_id", id),
			zap.Error(err))
	}
}

// Resize changes a terminal's window size. Unknown ids are ignored.
func (r *Registry) Resize(id string, cols, rows int) {
	r.mu.Lock()
	p, ok := r.procs[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := p.handle.Resize(uint16(cols), uint16(rows)); err != nil {
		r.logger.Debug("Terminal resize failed",
			zap.String("terminal_id", id),
			zap.Error(err))
	}
}

// Destroy kills a terminal process and removes it. Idempotent.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	p, ok := r.procs[id]
	if ok {
		delete(r.procs, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	p.kill(r.logger)
}

// CloseAll kills every terminal unconditionally and clears the map. Used by
// session teardown to guarantee no orphaned subprocess survives.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	procs := make([]*process, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	r.procs = make(map[string]*process)
	r.mu.Unlock()

	for _, p := range procs {
		p.kill(r.logger)
	}

	if len(procs) > 0 {
		r.logger.Info("Closed all terminals", zap.Int("count", len(procs)))
	}
}

// LiveCount returns the number of registered terminals.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

func (p *process) kill(log *logger.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return
	}
	p.killed = true

	if p.cmd != nil && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			log.Debug("Terminal kill failed",
				zap.String("terminal_id", p.id),
				zap.Error(err))
		}
	}
	_ = p.handle.Close()
}
