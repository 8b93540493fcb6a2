// Command codedesk runs the orchestration backend of the codedesk desktop
// shell: one agent session per worktree, a WebSocket gateway for the UI, and
// per-session terminals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codedesk/codedesk/internal/bridge"
	"github.com/codedesk/codedesk/internal/common/config"
	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/enginetest"
	"github.com/codedesk/codedesk/internal/events"
	gatewayws "github.com/codedesk/codedesk/internal/gateway/websocket"
	"github.com/codedesk/codedesk/internal/issues"
	"github.com/codedesk/codedesk/internal/notify"
	"github.com/codedesk/codedesk/internal/permission"
	"github.com/codedesk/codedesk/internal/session"
	"github.com/codedesk/codedesk/internal/toolgw"
	"github.com/codedesk/codedesk/internal/wshandlers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "codedesk:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile = flag.String("config", "", "path to config file")
		workspace  = flag.String("workspace", "", "initial worktree path (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *workspace != "" {
		cfg.Workspace.InitialPath = *workspace
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	providedBus, busCleanup, err := events.Provide(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = busCleanup() }()

	presets := permission.DefaultPresets()
	if cfg.Permissions.PresetFile != "" {
		presets, err = permission.LoadPresetFile(cfg.Permissions.PresetFile)
		if err != nil {
			return err
		}
	}

	// The development build binds the scripted engine; desktop builds swap
	// in the embedded engine binding here.
	engineFactory := enginetest.NewFactory()

	gatewayFactory := &toolgw.MCPFactory{Servers: cfg.ToolServers, Logger: log}

	registry := session.NewRegistry(
		engineFactory,
		gatewayFactory,
		providedBus.Bus,
		presets,
		cfg.Permissions.Permissive,
		cfg.Workspace.Shell,
		log,
	)

	gateway := gatewayws.NewGateway(log)

	var issueClient *issues.Client
	if cfg.Issues.Token != "" {
		issueClient = issues.NewClient(cfg.Issues.Token)
	}
	notifier := notify.New(cfg.Notifications.Enabled, cfg.Notifications.AppName)
	effects := bridge.NewSideEffects(notifier, issueClient, log)

	eventBridge := bridge.New(gateway.Hub, effects, log)
	manager := session.NewManager(registry, eventBridge, gateway.Hub, log)

	handlers := wshandlers.NewHandlers(manager, log)
	handlers.RegisterHandlers(gateway.Dispatcher)

	busSub, err := gateway.Hub.BindBus(providedBus.Bus)
	if err != nil {
		return fmt.Errorf("failed to bind event bus: %w", err)
	}
	defer func() { _ = busSub.Unsubscribe() }()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	gateway.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		gateway.Hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// Open the initial worktree. Creation is awaited off the main path;
	// commands arriving earlier are gated on session readiness.
	if cfg.Workspace.InitialPath != "" {
		g.Go(func() error {
			if _, err := manager.SwitchTo(ctx, cfg.Workspace.InitialPath); err != nil {
				log.Error("Initial session failed",
					zap.String("path", cfg.Workspace.InitialPath),
					zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()

	teardownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	registry.TeardownAll(teardownCtx)

	log.Info("Shutdown complete")
	return err
}
