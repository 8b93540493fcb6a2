// Package engine defines the contract between the orchestration core and the
// external agent execution engine. The engine owns model calls, tool
// invocation and durable conversation state; the core only drives it and
// relays its event stream.
package engine

import "context"

// SubscriptionID identifies one active event stream subscription.
type SubscriptionID string

// Engine is the handle to one agent execution bound to a single worktree.
// All long-running calls take a context; Abort and RespondToApproval are
// fire-and-forget signals.
type Engine interface {
	// Init performs the engine's asynchronous initialization. Message
	// traffic must not be dispatched before Init returns.
	Init(ctx context.Context) error

	// Subscribe registers a callback for the engine's event stream and
	// returns a token for later release.
	Subscribe(fn func(Event)) (SubscriptionID, error)

	// Unsubscribe releases a subscription token. Unknown tokens are ignored.
	Unsubscribe(id SubscriptionID)

	// SendMessage submits a user message for a new turn.
	SendMessage(ctx context.Context, content string) error

	// Steer injects guidance into an in-flight turn.
	Steer(ctx context.Context, content string) error

	// Abort signals the current turn to stop. There is no acknowledgement
	// beyond the engine eventually emitting a terminal event.
	Abort()

	// RespondToApproval answers a pending tool-approval request.
	RespondToApproval(requestID string, allow bool)

	// State returns the engine's cached state snapshot without blocking I/O.
	State() State

	// PatchState applies a partial state update.
	PatchState(ctx context.Context, patch StatePatch) error

	// CurrentThreadID returns the active conversation thread, or "" if none.
	CurrentThreadID() string
}

// Factory builds one engine per worktree.
type Factory interface {
	New(workdir string) (Engine, error)
}

// State is the engine's cached, synchronously readable state.
type State struct {
	Title       string `json:"title"`
	ThreadID    string `json:"thread_id"`
	ModelID     string `json:"model_id"`
	LinkedIssue string `json:"linked_issue"` // "owner/repo#123", empty if none
}

// StatePatch is a partial state update. Nil fields are left untouched.
type StatePatch struct {
	Title       *string `json:"title,omitempty"`
	ModelID     *string `json:"model_id,omitempty"`
	LinkedIssue *string `json:"linked_issue,omitempty"`
}
