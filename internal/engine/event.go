package engine

// EventKind discriminates the engine event union.
type EventKind string

const (
	KindMessage          EventKind = "message"
	KindThinking         EventKind = "thinking"
	KindToolCall         EventKind = "tool_call"
	KindApprovalRequired EventKind = "approval_required"
	KindCompleted        EventKind = "completed"
	KindQuestion         EventKind = "question"
	KindPlanReview       EventKind = "plan_review"
	KindError            EventKind = "error"
	KindAborted          EventKind = "aborted"
)

// Event is one emission from the engine's event stream. Values are immutable
// once emitted; enrichment produces new values downstream.
type Event struct {
	Kind     EventKind
	ThreadID string

	// Text carries message/thinking content or a question/plan summary.
	Text string

	// ToolName and RequestID are set for tool_call and approval_required.
	ToolName  string
	RequestID string

	// Err carries the failure for error events. It may be a stack-bearing
	// error value and must be normalized before crossing the UI boundary.
	Err error

	// Data carries kind-specific structured detail.
	Data map[string]interface{}
}
