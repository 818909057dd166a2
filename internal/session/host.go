package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/intent"
	"github.com/dwizi/intent-arbiter/internal/resolver"
	"github.com/dwizi/intent-arbiter/internal/store"
)

// turnHost stages every write of one turn on a private copy of the session.
// The manager persists the copy only when the turn finishes without error.
type turnHost struct {
	manager *Manager
	state   store.SessionState
	scope   intent.Scope
	now     time.Time
	reply   Reply
}

func (h *turnHost) ExecuteAction(_ context.Context, action clarify.Action) error {
	if action.Option.TargetID != "" {
		if _, ok := h.manager.catalog.Lookup(action.Option.TargetID); !ok {
			return fmt.Errorf("unknown target %q", action.Option.TargetID)
		}
	}
	executed := action
	h.reply.Action = &executed
	h.reply.Message = fmt.Sprintf("Opening %s.", action.Option.Label)
	h.state.FocusLatch = h.manager.latchAfter(h.state.FocusLatch, action.Option, h.now)
	return nil
}

func (h *turnHost) ShowClarifier(_ context.Context, view clarify.ClarifierView) error {
	shown := view
	h.reply.Clarifier = &shown
	h.reply.Message = view.Prompt
	return nil
}

func (h *turnHost) Acknowledge(_ context.Context, message string) error {
	h.reply.Message = message
	return nil
}

func (h *turnHost) UpdateContinuity(state clarify.ContinuityState) {
	h.state.Continuity = state
}

func (h *turnHost) SetLastClarification(clarification *clarify.LastClarification) {
	if clarification == nil {
		h.state.Clarification = nil
		return
	}
	staged := *clarification
	staged.Options = append([]clarify.Option(nil), clarification.Options...)
	h.state.Clarification = &staged
}

func (h *turnHost) SetLoopGuard(record *clarify.LoopGuardRecord) {
	if record == nil {
		h.state.LoopGuard = nil
		return
	}
	staged := *record
	h.state.LoopGuard = &staged
}

func (h *turnHost) Enrich(ctx context.Context, scope intent.Scope, needed []string) (*clarify.Enrichment, error) {
	return h.manager.enrich(ctx, h.state, scope, needed)
}

// latchAfter applies an executed option to the focus latch: widgets and
// panels latch, workspace and dashboard navigation clears it, anything else
// leaves it alone.
func (m *Manager) latchAfter(latch clarify.FocusLatch, option clarify.Option, now time.Time) clarify.FocusLatch {
	switch option.Type {
	case clarify.OptionWidgetItem:
		return clarify.LatchForOption(option, now)
	case clarify.OptionPanel:
		next := clarify.LatchForOption(option, now)
		for _, child := range m.catalog.Children(option.TargetID) {
			if child.Kind == resolver.KindWidget {
				return clarify.ResolvePendingLatch(next, child.ID)
			}
		}
		return next
	case clarify.OptionWorkspace, clarify.OptionDashboard:
		return nil
	default:
		return latch
	}
}
