package wshandlers

import (
	"context"

	"github.com/codedesk/codedesk/internal/permission"
	ws "github.com/codedesk/codedesk/pkg/websocket"
)

// SetPermissionRequest is the payload for permission.set
type SetPermissionRequest struct {
	Category string `json:"category"`
	Decision string `json:"decision"`
}

// SetPermission handles permission.set
func (h *Handlers) SetPermission(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req SetPermissionRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}

	decision := permission.Decision(req.Decision)
	switch decision {
	case permission.Allow, permission.Ask, permission.Deny:
	default:
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "decision must be allow, ask or deny", nil)
	}
	if req.Category == "" {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "category is required", nil)
	}

	s, err := h.manager.ActiveSession()
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	s.SetRule(permission.Category(req.Category), decision)

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"rules": s.Rules(),
	})
}

// ResetPermissions handles permission.reset: clears the session's grant set
// without touching the rules table.
func (h *Handlers) ResetPermissions(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	s, err := h.manager.ActiveSession()
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	s.ResetGrants()

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"reset": true,
	})
}

// PermissionModeRequest is the payload for permission.mode
type PermissionModeRequest struct {
	Permissive bool `json:"permissive"`
}

// SetPermissionMode handles permission.mode: replaces the whole rules table
// with the selected preset.
func (h *Handlers) SetPermissionMode(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req PermissionModeRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}

	s, err := h.manager.ActiveSession()
	if err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
	}

	s.ApplyPreset(h.manager.Registry().Presets(), req.Permissive)

	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"permissive": req.Permissive,
		"rules":      s.Rules(),
	})
}
