package websocket

// Action constants for WebSocket messages
const (
	// Health
	ActionHealthCheck = "health.check"

	// Session actions
	ActionSessionSwitch = "session.switch"
	ActionSessionSend   = "session.send"
	ActionSessionSteer  = "session.steer"
	ActionSessionAbort  = "session.abort"
	ActionSessionState  = "session.state"

	// Tool approval actions
	ActionToolApprove = "tool.approve"
	ActionToolDecline = "tool.decline"

	// Permission policy actions
	ActionPermissionSet   = "permission.set"
	ActionPermissionReset = "permission.reset"
	ActionPermissionMode  = "permission.mode"

	// Terminal actions
	ActionTerminalCreate  = "terminal.create"
	ActionTerminalWrite   = "terminal.write"
	ActionTerminalResize  = "terminal.resize"
	ActionTerminalDestroy = "terminal.destroy"

	// Focus reporting (client -> server)
	ActionFocusChanged = "focus.changed"

	// Notification actions (server -> client)
	ActionSessionEvent   = "session.event"
	ActionProjectChanged = "project.changed"
	ActionTerminalOutput = "terminal.output"
	ActionTerminalExit   = "terminal.exit"
)

// Error codes
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
)
