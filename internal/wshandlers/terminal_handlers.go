package wshandlers

import (
	"context"

	"go.uber.org/zap"

	ws "github.com/codedesk/codedesk/pkg/websocket"
)

// CreateTerminalRequest is the payload for terminal.create
type CreateTerminalRequest struct {
	SessionKey string `json:"session_key,omitempty"`
	Cols       int    `json:"cols"`
	Rows       int    `json:"rows"`
	Cwd        string `json:"cwd,omitempty"`
}

// CreateTerminal handles terminal.create
func (h *Handlers) CreateTerminal(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req CreateTerminalRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}

	s, err := h.manager.Session(req.SessionKey)
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	cols, rows := req.Cols, req.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	cwd := req.Cwd
	if cwd == "" {
		cwd = s.Key
	}

	id, err := s.Terminals.Create(cols, rows, cwd)
	if err != nil {
		h.logger.Error("failed to create terminal",
			zap.String("session_key", s.Key),
			zap.Error(err))
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeInternalError, "Failed to create terminal: "+err.Error(), nil)
	}

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"terminal_id": id,
		"session_key": s.Key,
	})
}

// TerminalWriteRequest is the payload for terminal.write
type TerminalWriteRequest struct {
	SessionKey string `json:"session_key,omitempty"`
	TerminalID string `json:"terminal_id"`
	Data       string `json:"data"`
}

// WriteTerminal handles terminal.write. Unknown terminal ids are ignored;
// the client may race with process exit.
func (h *Handlers) WriteTerminal(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req TerminalWriteRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	if req.TerminalID == "" {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "terminal_id is required", nil)
	}

	s, err := h.manager.Session(req.SessionKey)
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	s.Terminals.Write(req.TerminalID, []byte(req.Data))
	return nil, nil
}

// TerminalResizeRequest is the payload for terminal.resize
type TerminalResizeRequest struct {
	SessionKey string `json:"session_key,omitempty"`
	TerminalID string `json:"terminal_id"`
	Cols       int    `json:"cols"`
	Rows       int    `json:"rows"`
}

// ResizeTerminal handles terminal.resize
func (h *Handlers) ResizeTerminal(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req TerminalResizeRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	if req.TerminalID == "" {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "terminal_id is required", nil)
	}

	s, err := h.manager.Session(req.SessionKey)
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	s.Terminals.Resize(req.TerminalID, req.Cols, req.Rows)
	return nil, nil
}

// TerminalDestroyRequest is the payload for terminal.destroy
type TerminalDestroyRequest struct {
	SessionKey string `json:"session_key,omitempty"`
	TerminalID string `json:"terminal_id"`
}

// DestroyTerminal handles terminal.destroy
func (h *Handlers) DestroyTerminal(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req TerminalDestroyRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	if req.TerminalID == "" {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "terminal_id is required", nil)
	}

	s, err := h.manager.Session(req.SessionKey)
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	s.Terminals.Destroy(req.TerminalID)

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"destroyed": true,
	})
}
