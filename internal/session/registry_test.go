package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/engine"
	"github.com/codedesk/codedesk/internal/enginetest"
	"github.com/codedesk/codedesk/internal/events/bus"
	"github.com/codedesk/codedesk/internal/permission"
	"github.com/codedesk/codedesk/internal/toolgw"
)

// fakeGateway is a recording toolgw.Gateway.
type fakeGateway struct {
	mu          sync.Mutex
	hasServers  bool
	initErr     error
	inits       int
	disconnects int
}

func (g *fakeGateway) HasServers() bool { return g.hasServers }

func (g *fakeGateway) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inits++
	return g.initErr
}

func (g *fakeGateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnects++
	return nil
}

func (g *fakeGateway) Tools() map[string][]string { return nil }

// fakeGatewayFactory hands out one fakeGateway per worktree.
type fakeGatewayFactory struct {
	mu       sync.Mutex
	gateways map[string]*fakeGateway

	// Configure, when set, is applied to each new gateway.
	Configure func(*fakeGateway)
}

func newFakeGatewayFactory() *fakeGatewayFactory {
	return &fakeGatewayFactory{gateways: make(map[string]*fakeGateway)}
}

func (f *fakeGatewayFactory) New(workdir string) (toolgw.Gateway, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &fakeGateway{}
	if f.Configure != nil {
		f.Configure(g)
	}
	f.gateways[workdir] = g
	return g, nil
}

func (f *fakeGatewayFactory) get(workdir string) *fakeGateway {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gateways[workdir]
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stderr"})
	require.NoError(t, err)
	return log
}

type registryEnv struct {
	registry *Registry
	engines  *enginetest.Factory
	gateways *fakeGatewayFactory
}

func newRegistryEnv(t *testing.T) *registryEnv {
	t.Helper()
	log := testLogger(t)
	env := &registryEnv{
		engines:  enginetest.NewFactory(),
		gateways: newFakeGatewayFactory(),
	}
	env.registry = NewRegistry(
		env.engines,
		env.gateways,
		bus.NewMemoryEventBus(log),
		permission.DefaultPresets(),
		false,
		"/bin/sh",
		log,
	)
	return env
}

func TestGetOrCreateInsertsBeforeInitCompletes(t *testing.T) {
	env := newRegistryEnv(t)
	release := make(chan struct{})
	env.engines.Configure = func(m *enginetest.Mock) { m.InitRelease = release }

	s, created, err := env.registry.GetOrCreate(context.Background(), "/work/repo")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, s.Ready())

	// The entry is visible while initialization is still in flight, so a
	// concurrent switch back reuses it instead of double-creating.
	again, created2, err := env.registry.GetOrCreate(context.Background(), "/work/repo")
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Same(t, s, again)
	assert.Equal(t, 1, env.registry.Len())

	close(release)
	require.NoError(t, s.AwaitReady(context.Background()))
	assert.True(t, s.Ready())
}

func TestGetOrCreateConcurrent(t *testing.T) {
	env := newRegistryEnv(t)
	release := make(chan struct{})
	env.engines.Configure = func(m *enginetest.Mock) { m.InitRelease = release }

	const n = 16
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, _, err := env.registry.GetOrCreate(context.Background(), "/work/repo")
			require.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()
	close(release)

	assert.Equal(t, 1, env.registry.Len())
	for i := 1; i < n; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestInitFailurePropagatesToAwaiters(t *testing.T) {
	env := newRegistryEnv(t)
	env.engines.Configure = func(m *enginetest.Mock) { m.InitErr = errors.New("engine exploded") }

	s, _, err := env.registry.GetOrCreate(context.Background(), "/work/repo")
	require.NoError(t, err)

	err = s.AwaitReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine exploded")

	// The failed session stays registered; it is not silently retried.
	assert.Equal(t, 1, env.registry.Len())
}

func TestToolGatewayFailureIsNonFatal(t *testing.T) {
	env := newRegistryEnv(t)
	env.gateways.Configure = func(g *fakeGateway) {
		g.hasServers = true
		g.initErr = errors.New("server unreachable")
	}

	s, _, err := env.registry.GetOrCreate(context.Background(), "/work/repo")
	require.NoError(t, err)

	// The session comes up usable without its tool servers.
	require.NoError(t, s.AwaitReady(context.Background()))
	assert.Equal(t, 1, env.gateways.get("/work/repo").inits)
}

func TestToolGatewaySkippedWithoutServers(t *testing.T) {
	env := newRegistryEnv(t)

	s, _, err := env.registry.GetOrCreate(context.Background(), "/work/repo")
	require.NoError(t, err)
	require.NoError(t, s.AwaitReady(context.Background()))

	assert.Equal(t, 0, env.gateways.get("/work/repo").inits)
}

func TestAwaitReadyHonorsContext(t *testing.T) {
	env := newRegistryEnv(t)
	env.engines.Configure = func(m *enginetest.Mock) { m.InitRelease = make(chan struct{}) }

	s, _, err := env.registry.GetOrCreate(context.Background(), "/work/repo")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.AwaitReady(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTeardownReleasesEverything(t *testing.T) {
	env := newRegistryEnv(t)

	s, _, err := env.registry.GetOrCreate(context.Background(), "/work/repo")
	require.NoError(t, err)
	require.NoError(t, s.AwaitReady(context.Background()))

	mock := env.engines.Get("/work/repo")
	id, err := mock.Subscribe(func(engine.Event) {})
	require.NoError(t, err)
	s.SetSubscription(id)
	require.Equal(t, 1, mock.SubscriberCount())

	env.registry.Teardown(context.Background(), "/work/repo")

	assert.Equal(t, 0, env.registry.Len())
	assert.Equal(t, 0, mock.SubscriberCount())
	assert.Equal(t, 1, env.gateways.get("/work/repo").disconnects)
	assert.Equal(t, 0, s.Terminals.LiveCount())

	// Unknown paths are a no-op.
	env.registry.Teardown(context.Background(), "/work/other")
}

func TestTeardownAll(t *testing.T) {
	env := newRegistryEnv(t)

	for _, p := range []string{"/work/a", "/work/b", "/work/c"} {
		s, _, err := env.registry.GetOrCreate(context.Background(), p)
		require.NoError(t, err)
		require.NoError(t, s.AwaitReady(context.Background()))
	}
	require.Equal(t, 3, env.registry.Len())

	env.registry.TeardownAll(context.Background())
	assert.Equal(t, 0, env.registry.Len())
	assert.Empty(t, env.registry.Paths())
}
