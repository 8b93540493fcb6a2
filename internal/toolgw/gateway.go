// Package toolgw provides the tool-gateway collaborator: a proxy that owns
// connections to external MCP tool servers on behalf of one session.
package toolgw

import "context"

// Gateway is the per-session tool proxy handle.
type Gateway interface {
	// HasServers reports whether any tool server is configured.
	HasServers() bool

	// Init connects to all configured servers.
	Init(ctx context.Context) error

	// Disconnect closes all server connections.
	Disconnect(ctx context.Context) error

	// Tools returns the discovered tool names, keyed by server name.
	Tools() map[string][]string
}

// Factory builds one gateway per session.
type Factory interface {
	New(workdir string) (Gateway, error)
}
