package toolgw

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/codedesk/codedesk/internal/common/config"
	"github.com/codedesk/codedesk/internal/common/logger"
)

// MCPGateway implements Gateway over streamable-HTTP MCP clients, one per
// configured server.
type MCPGateway struct {
	servers []config.ToolServerConfig
	logger  *logger.Logger

	mu      sync.Mutex
	clients map[string]*mcpclient.Client
	tools   map[string][]string
}

// NewMCPGateway creates a gateway for the given server list. No connections
// are made until Init.
func NewMCPGateway(servers []config.ToolServerConfig, log *logger.Logger) *MCPGateway {
	return &MCPGateway{
		servers: servers,
		logger:  log.WithFields(zap.String("component", "toolgw")),
		clients: make(map[string]*mcpclient.Client),
		tools:   make(map[string][]string),
	}
}

// HasServers implements Gateway.
func (g *MCPGateway) HasServers() bool {
	return len(g.servers) > 0
}

// Init connects to every configured server, performs the MCP handshake and
// discovers the available tools.
func (g *MCPGateway) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, srv := range g.servers {
		if _, ok := g.clients[srv.Name]; ok {
			continue
		}

		c, err := mcpclient.NewStreamableHttpClient(srv.URL)
		if err != nil {
			return fmt.Errorf("failed to create MCP client for %s: %w", srv.Name, err)
		}
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start MCP client for %s: %w", srv.Name, err)
		}

		initReq := mcp.InitializeRequest{}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initReq.Params.ClientInfo = mcp.Implementation{Name: "codedesk", Version: "1.0.0"}
		initReq.Params.Capabilities = mcp.ClientCapabilities{}

		if _, err := c.Initialize(ctx, initReq); err != nil {
			_ = c.Close()
			return fmt.Errorf("MCP initialize failed for %s: %w", srv.Name, err)
		}

		list, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			_ = c.Close()
			return fmt.Errorf("failed to list tools for %s: %w", srv.Name, err)
		}

		names := make([]string, 0, len(list.Tools))
		for _, t := range list.Tools {
			names = append(names, t.Name)
		}
		g.clients[srv.Name] = c
		g.tools[srv.Name] = names

		g.logger.Info("Connected to tool server",
			zap.String("server", srv.Name),
			zap.Int("tools", len(names)))
	}
	return nil
}

// Disconnect closes all server connections. Errors are joined so callers can
// log a single failure.
func (g *MCPGateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for name, c := range g.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", name, err))
		}
		delete(g.clients, name)
	}
	return errors.Join(errs...)
}

// Tools implements Gateway.
func (g *MCPGateway) Tools() map[string][]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string][]string, len(g.tools))
	for srv, names := range g.tools {
		out[srv] = append([]string(nil), names...)
	}
	return out
}

// MCPFactory builds MCP gateways from static configuration.
type MCPFactory struct {
	Servers []config.ToolServerConfig
	Logger  *logger.Logger
}

// New implements Factory.
func (f *MCPFactory) New(workdir string) (Gateway, error) {
	return NewMCPGateway(f.Servers, f.Logger.WithSessionKey(workdir)), nil
}
