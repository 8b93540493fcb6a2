// Package websocket provides the WebSocket gateway between the orchestration
// core and the desktop presentation surface.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/codedesk/codedesk/internal/bridge"
	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/events"
	"github.com/codedesk/codedesk/internal/events/bus"
	"github.com/codedesk/codedesk/internal/session"
	ws "github.com/codedesk/codedesk/pkg/websocket"
)

// Hub manages all WebSocket client connections. It is the presentation
// boundary: the bridge forwards relayed events here, and terminal events
// arrive via the event bus.
type Hub struct {
	// All registered clients
	clients map[*Client]bool

	// Channels for client management
	register   chan *Client
	unregister chan *Client

	// Channel for broadcasting notifications
	broadcast chan *ws.Message

	// Message dispatcher
	dispatcher *ws.Dispatcher

	// done is closed when Run exits, releasing callers blocked on the
	// register/unregister channels during shutdown.
	done chan struct{}

	// focused mirrors the client-reported window focus state.
	focused bool

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(dispatcher *ws.Dispatcher, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *ws.Message, 256),
		dispatcher: dispatcher,
		done:       make(chan struct{}),
		logger:     log.WithFields(zap.String("component", "ws_hub")),
	}
}

// Run starts the hub's main processing loop
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

// closeAllClients closes all client connections
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// removeClient removes a client from the hub
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))
}

// broadcastMessage sends a message to all connected clients
func (h *Hub) broadcastMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client buffer full, will be cleaned up by write pump
		}
	}
}

// Register adds a client to the hub. A no-op once the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub. A no-op once the hub has stopped;
// Run's shutdown already closed every client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for delivery to all clients
func (h *Hub) Broadcast(msg *ws.Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast buffer full, dropping message",
			zap.String("action", msg.Action))
	}
}

// SetFocused records the client-reported window focus state.
func (h *Hub) SetFocused(focused bool) {
	h.mu.Lock()
	h.focused = focused
	h.mu.Unlock()
}

// Reachable implements bridge.Boundary: a surface exists while at least one
// client is connected.
func (h *Hub) Reachable() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// Focused implements bridge.Boundary.
func (h *Hub) Focused() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.focused
}

// Forward implements bridge.Boundary: relayed engine events become
// session.event notifications.
func (h *Hub) Forward(ev bridge.RelayEvent) {
	msg, err := ws.NewNotification(ws.ActionSessionEvent, ev)
	if err != nil {
		h.logger.Error("Failed to build session event notification", zap.Error(err))
		return
	}
	h.Broadcast(msg)
}

// NotifyProjectChanged implements session.ProjectNotifier.
func (h *Hub) NotifyProjectChanged(info session.ProjectInfo) {
	msg, err := ws.NewNotification(ws.ActionProjectChanged, info)
	if err != nil {
		h.logger.Error("Failed to build project changed notification", zap.Error(err))
		return
	}
	h.Broadcast(msg)
}

// BindBus rebroadcasts terminal events from the event bus to the UI.
func (h *Hub) BindBus(b bus.EventBus) (bus.Subscription, error) {
	return b.Subscribe(events.TerminalSubjects, func(ctx context.Context, ev *bus.Event) error {
		action := ws.ActionTerminalOutput
		if ev.Type == events.TerminalExit {
			action = ws.ActionTerminalExit
		}
		msg, err := ws.NewNotification(action, ev.Data)
		if err != nil {
			return err
		}
		h.Broadcast(msg)
		return nil
	})
}
