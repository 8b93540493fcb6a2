package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codedesk/codedesk/internal/engine"
	"github.com/codedesk/codedesk/internal/notify"
)

func TestAlertTitle(t *testing.T) {
	assert.Equal(t, "Agent finished in repo", alertTitle(engine.KindCompleted, "/work/repo"))
	assert.Equal(t, "Approval needed in repo", alertTitle(engine.KindApprovalRequired, "/work/repo"))
	assert.Equal(t, "Agent has a question in repo", alertTitle(engine.KindQuestion, "/work/repo"))
	assert.Equal(t, "Plan ready for review in repo", alertTitle(engine.KindPlanReview, "/work/repo"))
	assert.Equal(t, "Agent error in repo", alertTitle(engine.KindError, "/work/repo"))
	assert.Equal(t, "repo", alertTitle(engine.KindMessage, "/work/repo"))
}

func TestDispatchIgnoresNonAlertKinds(t *testing.T) {
	env := newBridgeEnv(t)
	effects := NewSideEffects(notify.New(false, ""), nil, testLogger(t))

	// Must be a no-op and never panic, even with no issue client configured.
	effects.Dispatch(env.session, RelayEvent{Kind: string(engine.KindMessage)})
	effects.Dispatch(env.session, RelayEvent{Kind: string(engine.KindThinking)})
	effects.Dispatch(env.session, RelayEvent{Kind: string(engine.KindCompleted)})
}

func TestDispatchSkipsIssueSyncWithoutLinkedIssue(t *testing.T) {
	env := newBridgeEnv(t)
	effects := NewSideEffects(notify.New(false, ""), nil, testLogger(t))

	// Completed with no linked issue and no client: nothing to do.
	effects.Dispatch(env.session, RelayEvent{Kind: string(engine.KindCompleted)})
	assert.Empty(t, env.mock.State().LinkedIssue)
}
