package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/codedesk/codedesk/internal/common/logger"
	"github.com/codedesk/codedesk/internal/engine"
	"github.com/codedesk/codedesk/internal/issues"
	"github.com/codedesk/codedesk/internal/notify"
	"github.com/codedesk/codedesk/internal/session"
)

const effectTimeout = 10 * time.Second

// alertKinds are the event kinds that raise a desktop alert when the
// presentation surface is unfocused.
var alertKinds = map[engine.EventKind]struct{}{
	engine.KindCompleted:        {},
	engine.KindApprovalRequired: {},
	engine.KindQuestion:         {},
	engine.KindPlanReview:       {},
	engine.KindError:            {},
}

// SideEffects dispatches best-effort reactions to relayed events. Every
// failure is logged and swallowed; nothing here can fail the relay path.
type SideEffects struct {
	notifier *notify.Notifier
	issues   *issues.Client
	logger   *logger.Logger
}

// NewSideEffects creates the side-effect dispatcher. The issues client may
// be nil when no tracker credentials are configured.
func NewSideEffects(notifier *notify.Notifier, issueClient *issues.Client, log *logger.Logger) *SideEffects {
	return &SideEffects{
		notifier: notifier,
		issues:   issueClient,
		logger:   log.WithFields(zap.String("component", "side_effects")),
	}
}

// Dispatch runs the side effects for one relayed event.
func (e *SideEffects) Dispatch(s *session.Session, relay RelayEvent) {
	kind := engine.EventKind(relay.Kind)
	if _, ok := alertKinds[kind]; !ok {
		return
	}

	e.alert(s, relay)

	if kind == engine.KindCompleted {
		e.syncIssue(s)
	}
}

func (e *SideEffects) alert(s *session.Session, relay RelayEvent) {
	if e.notifier == nil || !e.notifier.Available() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()

	title := alertTitle(engine.EventKind(relay.Kind), s.Key)
	body := relay.Text
	if relay.Error != nil {
		body = relay.Error.Message
	}
	if body == "" && relay.ToolName != "" {
		body = relay.CategoryLabel
	}

	if err := e.notifier.Send(ctx, title, body); err != nil {
		e.logger.Debug("Desktop alert failed",
			zap.String("session_key", s.Key),
			zap.Error(err))
	}
}

// syncIssue moves the session's linked issue to done. Credentials and the
// issue reference come from state cached on the session's engine.
func (e *SideEffects) syncIssue(s *session.Session) {
	if e.issues == nil {
		return
	}

	linked := s.Engine.State().LinkedIssue
	if linked == "" {
		return
	}

	ref, err := issues.ParseRef(linked)
	if err != nil {
		e.logger.Debug("Invalid linked issue reference",
			zap.String("session_key", s.Key),
			zap.String("issue", linked),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()

	if err := e.issues.CloseIssue(ctx, ref); err != nil {
		e.logger.Warn("Issue status sync failed",
			zap.String("session_key", s.Key),
			zap.String("issue", linked),
			zap.Error(err))
		return
	}

	e.logger.Info("Linked issue closed",
		zap.String("session_key", s.Key),
		zap.String("issue", linked))
}

func alertTitle(kind engine.EventKind, sessionKey string) string {
	name := filepath.Base(sessionKey)
	switch kind {
	case engine.KindCompleted:
		return fmt.Sprintf("Agent finished in %s", name)
	case engine.KindApprovalRequired:
		return fmt.Sprintf("Approval needed in %s", name)
	case engine.KindQuestion:
		return fmt.Sprintf("Agent has a question in %s", name)
	case engine.KindPlanReview:
		return fmt.Sprintf("Plan ready for review in %s", name)
	case engine.KindError:
		return fmt.Sprintf("Agent error in %s", name)
	default:
		return name
	}
}
