// Package wshandlers provides WebSocket message handlers for the
// orchestration core: session switching, message dispatch, tool approvals,
// permission policy and terminal control.
package wshandlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/engine"
	"github.com/codedesk/codedesk/internal/permission"
	"github.com/codedesk/codedesk/internal/session"
	ws "github.com/codedesk/codedesk/pkg/websocket"
)

// Handlers contains the WebSocket handlers for the orchestration API
type Handlers struct {
	manager *session.Manager
	logger  *logger.Logger
}

// NewHandlers creates a new WebSocket handlers instance
func NewHandlers(m *session.Manager, log *logger.Logger) *Handlers {
	return &Handlers{
		manager: m,
		logger:  log.WithFields(zap.String("component", "ws_handlers")),
	}
}

// RegisterHandlers registers all handlers with the dispatcher
func (h *Handlers) RegisterHandlers(d *ws.Dispatcher) {
	d.RegisterFunc(ws.ActionSessionSwitch, h.SwitchSession)
	d.RegisterFunc(ws.ActionSessionSend, h.SendMessage)
	d.RegisterFunc(ws.ActionSessionSteer, h.SteerMessage)
	d.RegisterFunc(ws.ActionSessionAbort, h.AbortSession)
	d.RegisterFunc(ws.ActionSessionState, h.SessionState)
	d.RegisterFunc(ws.ActionToolApprove, h.ApproveTool)
	d.RegisterFunc(ws.ActionToolDecline, h.DeclineTool)
	d.RegisterFunc(ws.ActionPermissionSet, h.SetPermission)
	d.RegisterFunc(ws.ActionPermissionReset, h.ResetPermissions)
	d.RegisterFunc(ws.ActionPermissionMode, h.SetPermissionMode)
	d.RegisterFunc(ws.ActionTerminalCreate, h.CreateTerminal)
	d.RegisterFunc(ws.ActionTerminalWrite, h.WriteTerminal)
	d.RegisterFunc(ws.ActionTerminalResize, h.ResizeTerminal)
	d.RegisterFunc(ws.ActionTerminalDestroy, h.DestroyTerminal)
}

// SwitchSessionRequest is the payload for session.switch
type SwitchSessionRequest struct {
	Path string `json:"path"`
}

// SwitchSession handles session.switch
func (h *Handlers) SwitchSession(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req SwitchSessionRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	if req.Path == "" {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "path is required", nil)
	}

	s, err := h.manager.SwitchTo(ctx, req.Path)
	if err != nil {
		h.logger.Error("failed to switch session",
			zap.String("path", req.Path),
			zap.Error(err))
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeInternalError, "Failed to switch session: "+err.Error(), nil)
	}

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"session_key": s.Key,
	})
}

// SendMessageRequest is the payload for session.send and session.steer
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage handles session.send. Dispatch is fire-and-forget: the shared
// command path must stay free to deliver aborts for this session and
// commands for every other session while a generation runs.
func (h *Handlers) SendMessage(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req SendMessageRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	if req.Content == "" {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "content is required", nil)
	}

	s, err := h.manager.ActiveSession()
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	go h.deliver(s, req.Content)

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"accepted":    true,
		"session_key": s.Key,
	})
}

// deliver runs a send outside the command path, gated on session readiness,
// with a best-effort title continuation after the first turn.
func (h *Handlers) deliver(s *session.Session, content string) {
	ctx := context.Background()

	if err := s.AwaitReady(ctx); err != nil {
		h.logger.Error("send dropped: session failed to initialize",
			zap.String("session_key", s.Key),
			zap.Error(err))
		return
	}

	firstTurn := s.Engine.CurrentThreadID() == ""

	if err := s.Engine.SendMessage(ctx, content); err != nil {
		h.logger.Error("send failed",
			zap.String("session_key", s.Key),
			zap.Error(err))
		return
	}

	if firstTurn {
		h.generateTitle(s, content)
	}
}

// generateTitle derives a conversation title after the first turn. Failures
// are logged and swallowed; the title is cosmetic.
func (h *Handlers) generateTitle(s *session.Session, content string) {
	if s.Engine.State().Title != "" {
		return
	}

	title := strings.Join(strings.Fields(content), " ")
	if len(title) > 48 {
		title = strings.TrimSpace(title[:48]) + "…"
	}
	if title == "" {
		return
	}

	patch := engine.StatePatch{Title: &title}
	if err := s.Engine.PatchState(context.Background(), patch); err != nil {
		h.logger.Debug("title generation failed",
			zap.String("session_key", s.Key),
			zap.Error(err))
	}
}

// SteerMessage handles session.steer. Like send, it never blocks the
// command path.
func (h *Handlers) SteerMessage(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req SendMessageRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	if req.Content == "" {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "content is required", nil)
	}

	s, err := h.manager.ActiveSession()
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	go func() {
		ctx := context.Background()
		if err := s.AwaitReady(ctx); err != nil {
			h.logger.Error("steer dropped: session failed to initialize",
				zap.String("session_key", s.Key),
				zap.Error(err))
			return
		}
		if err := s.Engine.Steer(ctx, req.Content); err != nil {
			h.logger.Error("steer failed",
				zap.String("session_key", s.Key),
				zap.Error(err))
		}
	}()

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"accepted":    true,
		"session_key": s.Key,
	})
}

// AbortSession handles session.abort. The abort signal goes straight to the
// engine; it is never queued behind an in-flight send.
func (h *Handlers) AbortSession(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	s, err := h.manager.ActiveSession()
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	s.Engine.Abort()

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"aborted":     true,
		"session_key": s.Key,
	})
}

// SessionState handles session.state
func (h *Handlers) SessionState(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	s, err := h.manager.ActiveSession()
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	resp := map[string]interface{}{
		"session_key": s.Key,
		"ready":       s.Ready(),
		"rules":       s.Rules(),
	}
	if s.Ready() {
		resp["state"] = s.Engine.State()
		resp["tools"] = s.Tools.Tools()
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

// ApprovalRequest is the payload for tool.approve and tool.decline
type ApprovalRequest struct {
	RequestID string `json:"request_id"`
	Tool      string `json:"tool"`

	// Remember grants the tool's category for the rest of the process.
	Remember bool `json:"remember,omitempty"`
}

// ApproveTool handles tool.approve
func (h *Handlers) ApproveTool(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	return h.respondToApproval(msg, true)
}

// DeclineTool handles tool.decline
func (h *Handlers) DeclineTool(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	return h.respondToApproval(msg, false)
}

func (h *Handlers) respondToApproval(msg *ws.Message, allow bool) (*ws.Message, error) {
	var req ApprovalRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	if req.RequestID == "" {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "request_id is required", nil)
	}

	s, err := h.manager.ActiveSession()
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	if allow && req.Remember && req.Tool != "" {
		s.Grant(permission.CategoryOf(req.Tool))
	}

	s.Engine.RespondToApproval(req.RequestID, allow)

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"request_id": req.RequestID,
		"allowed":    allow,
	})
}
