// Package bridge multiplexes every session's engine event stream toward the
// presentation boundary, gating tool approvals through the permission engine
// and enriching what passes through.
package bridge

import (
	"go.uber.org/zap"

	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/engine"
	"github.com/codedesk/codedesk/internal/permission"
	"github.com/codedesk/codedesk/internal/session"
)

// Boundary is the presentation surface the bridge forwards into.
type Boundary interface {
	// Reachable reports whether a surface exists to deliver to. Events are
	// dropped, not queued, while unreachable; the engine has already durably
	// recorded any state change they describe.
	Reachable() bool

	// Focused reports whether the surface currently has user focus.
	Focused() bool

	// Forward delivers one relayed event.
	Forward(ev RelayEvent)
}

// RelayEvent is the enriched, serializable event crossing the boundary.
// It is built fresh per emission; the engine's event value is never mutated.
type RelayEvent struct {
	SessionKey string `json:"session_key"`
	Kind       string `json:"kind"`
	ThreadID   string `json:"thread_id,omitempty"`
	Text       string `json:"text,omitempty"`

	ToolName      string `json:"tool_name,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	Category      string `json:"category,omitempty"`
	CategoryLabel string `json:"category_label,omitempty"`

	Error *ErrorInfo             `json:"error,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// ErrorInfo is the plain structured form of an error payload.
type ErrorInfo struct {
	Message string `json:"message"`
}

// Bridge wires sessions to the boundary. One live subscription per session.
type Bridge struct {
	boundary Boundary
	effects  *SideEffects
	logger   *logger.Logger
}

// New creates the event bridge.
func New(boundary Boundary, effects *SideEffects, log *logger.Logger) *Bridge {
	return &Bridge{
		boundary: boundary,
		effects:  effects,
		logger:   log.WithFields(zap.String("component", "bridge")),
	}
}

// Rebuild (re)wires a session's event stream. Any prior subscription is
// released first, so rebuilding is idempotent and a single underlying
// emission is never delivered twice.
func (b *Bridge) Rebuild(s *session.Session) error {
	if id, had := s.TakeSubscription(); had {
		s.Engine.Unsubscribe(id)
	}

	id, err := s.Engine.Subscribe(func(ev engine.Event) {
		b.handle(s, ev)
	})
	if err != nil {
		return err
	}
	s.SetSubscription(id)

	b.logger.Debug("Bridge rebuilt", zap.String("session_key", s.Key))
	return nil
}

// Release drops a session's subscription, if any.
func (b *Bridge) Release(s *session.Session) {
	if id, had := s.TakeSubscription(); had {
		s.Engine.Unsubscribe(id)
	}
}

// handle processes one engine emission.
func (b *Bridge) handle(s *session.Session, ev engine.Event) {
	// Delivery is at-most-once and non-critical for engine correctness.
	if !b.boundary.Reachable() {
		return
	}

	relay := RelayEvent{
		SessionKey: s.Key,
		Kind:       string(ev.Kind),
		ThreadID:   ev.ThreadID,
		Text:       ev.Text,
		ToolName:   ev.ToolName,
		RequestID:  ev.RequestID,
		Data:       ev.Data,
	}

	if ev.Kind == engine.KindApprovalRequired {
		decision := s.ResolveTool(ev.ToolName)
		switch decision {
		case permission.Allow, permission.Deny:
			// Pre-decided: answer the engine directly, skip the round trip.
			s.Engine.RespondToApproval(ev.RequestID, decision == permission.Allow)
			b.logger.Debug("Approval auto-resolved",
				zap.String("session_key", s.Key),
				zap.String("tool", ev.ToolName),
				zap.String("decision", string(decision)))
			return
		case permission.Ask:
			category := permission.CategoryOf(ev.ToolName)
			relay.Category = string(category)
			relay.CategoryLabel = permission.Label(category)
		}
	}

	// Stack-bearing error values become plain structured fields.
	if ev.Err != nil {
		relay.Error = &ErrorInfo{Message: ev.Err.Error()}
	}

	if !b.boundary.Focused() {
		// Side effects are fire-and-forget; a slow notifier or issue sync
		// must never stall the relay path.
		go b.effects.Dispatch(s, relay)
	}

	b.boundary.Forward(relay)
}
