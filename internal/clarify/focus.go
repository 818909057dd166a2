package clarify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FocusLatch records that the user is working inside a widget. It is either
// resolved (the widget is known) or pending (only the hosting panel is known).
type FocusLatch interface {
	isFocusLatch()
}

type LatchInfo struct {
	WidgetLabel       string    `json:"widget_label"`
	LatchedAt         time.Time `json:"latched_at"`
	TurnsSinceLatched int       `json:"turns_since_latched"`
	Suspended         bool      `json:"suspended,omitempty"`
}

type ResolvedFocusLatch struct {
	WidgetID string `json:"widget_id"`
	LatchInfo
}

type PendingFocusLatch struct {
	PendingPanelID string `json:"pending_panel_id"`
	LatchInfo
}

func (ResolvedFocusLatch) isFocusLatch() {}
func (PendingFocusLatch) isFocusLatch()  {}

const (
	latchKindResolved = "resolved"
	latchKindPending  = "pending"
)

func unknownLatch(latch FocusLatch) string {
	panic(fmt.Sprintf("clarify: unknown focus latch %T", latch))
}

// LatchID is the lookup key: the widget id, or pending:<panelID>.
func LatchID(latch FocusLatch) string {
	switch typed := latch.(type) {
	case nil:
		return ""
	case ResolvedFocusLatch:
		return typed.WidgetID
	case PendingFocusLatch:
		return "pending:" + typed.PendingPanelID
	default:
		return unknownLatch(latch)
	}
}

func LatchKind(latch FocusLatch) string {
	switch latch.(type) {
	case nil:
		return ""
	case ResolvedFocusLatch:
		return latchKindResolved
	case PendingFocusLatch:
		return latchKindPending
	default:
		return unknownLatch(latch)
	}
}

func latchInfo(latch FocusLatch) LatchInfo {
	switch typed := latch.(type) {
	case nil:
		return LatchInfo{}
	case ResolvedFocusLatch:
		return typed.LatchInfo
	case PendingFocusLatch:
		return typed.LatchInfo
	default:
		unknownLatch(latch)
		return LatchInfo{}
	}
}

func withLatchInfo(latch FocusLatch, info LatchInfo) FocusLatch {
	switch typed := latch.(type) {
	case nil:
		return nil
	case ResolvedFocusLatch:
		typed.LatchInfo = info
		return typed
	case PendingFocusLatch:
		typed.LatchInfo = info
		return typed
	default:
		unknownLatch(latch)
		return nil
	}
}

// LatchActive reports whether latch exists and is not suspended.
func LatchActive(latch FocusLatch) bool {
	return latch != nil && !latchInfo(latch).Suspended
}

func LatchLabel(latch FocusLatch) string {
	return latchInfo(latch).WidgetLabel
}

// LatchForOption creates the latch an executed option implies: widget items
// resolve to their widget, panels become pending. Other targets navigate away
// and yield nil.
func LatchForOption(option Option, now time.Time) FocusLatch {
	info := LatchInfo{WidgetLabel: option.Label, LatchedAt: now.UTC()}
	switch option.Type {
	case OptionWidgetItem:
		if strings.TrimSpace(option.WidgetID) == "" {
			return nil
		}
		return ResolvedFocusLatch{WidgetID: option.WidgetID, LatchInfo: info}
	case OptionPanel:
		panelID := strings.TrimSpace(option.TargetID)
		if panelID == "" {
			panelID = option.ID
		}
		return PendingFocusLatch{PendingPanelID: panelID, LatchInfo: info}
	default:
		return nil
	}
}

// ResolvePendingLatch upgrades a pending latch once its widget is known.
func ResolvePendingLatch(latch FocusLatch, widgetID string) FocusLatch {
	switch typed := latch.(type) {
	case nil:
		return nil
	case ResolvedFocusLatch:
		return typed
	case PendingFocusLatch:
		if strings.TrimSpace(widgetID) == "" {
			return typed
		}
		return ResolvedFocusLatch{WidgetID: widgetID, LatchInfo: typed.LatchInfo}
	default:
		unknownLatch(latch)
		return nil
	}
}

// TickLatch ages the latch by one turn and drops it after maxTurns.
func TickLatch(latch FocusLatch, maxTurns int) FocusLatch {
	if latch == nil {
		return nil
	}
	info := latchInfo(latch)
	info.TurnsSinceLatched++
	if maxTurns > 0 && info.TurnsSinceLatched > maxTurns {
		return nil
	}
	return withLatchInfo(latch, info)
}

func SuspendLatch(latch FocusLatch) FocusLatch {
	if latch == nil {
		return nil
	}
	info := latchInfo(latch)
	info.Suspended = true
	return withLatchInfo(latch, info)
}

type latchEnvelope struct {
	Kind           string `json:"kind"`
	WidgetID       string `json:"widget_id,omitempty"`
	PendingPanelID string `json:"pending_panel_id,omitempty"`
	LatchInfo
}

// MarshalFocusLatch encodes a latch with its kind discriminator. A nil latch
// encodes as JSON null.
func MarshalFocusLatch(latch FocusLatch) ([]byte, error) {
	switch typed := latch.(type) {
	case nil:
		return []byte("null"), nil
	case ResolvedFocusLatch:
		return json.Marshal(latchEnvelope{Kind: latchKindResolved, WidgetID: typed.WidgetID, LatchInfo: typed.LatchInfo})
	case PendingFocusLatch:
		return json.Marshal(latchEnvelope{Kind: latchKindPending, PendingPanelID: typed.PendingPanelID, LatchInfo: typed.LatchInfo})
	default:
		return nil, fmt.Errorf("marshal focus latch: unknown type %T", latch)
	}
}

func UnmarshalFocusLatch(data []byte) (FocusLatch, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var envelope latchEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode focus latch: %w", err)
	}
	switch envelope.Kind {
	case latchKindResolved:
		return ResolvedFocusLatch{WidgetID: envelope.WidgetID, LatchInfo: envelope.LatchInfo}, nil
	case latchKindPending:
		return PendingFocusLatch{PendingPanelID: envelope.PendingPanelID, LatchInfo: envelope.LatchInfo}, nil
	default:
		return nil, fmt.Errorf("decode focus latch: unknown kind %q", envelope.Kind)
	}
}
