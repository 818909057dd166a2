package clarify

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLatchForOption(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	widget := LatchForOption(Option{ID: "opt-0", Label: "Todo", Type: OptionWidgetItem, WidgetID: "w-1"}, now)
	if LatchKind(widget) != "resolved" || LatchID(widget) != "w-1" {
		t.Fatalf("expected resolved latch w-1, got %s %s", LatchKind(widget), LatchID(widget))
	}

	panel := LatchForOption(Option{ID: "opt-1", Label: "Links Panel A", Type: OptionPanel, TargetID: "panel-a"}, now)
	if LatchKind(panel) != "pending" || LatchID(panel) != "pending:panel-a" {
		t.Fatalf("expected pending latch, got %s %s", LatchKind(panel), LatchID(panel))
	}
	if LatchLabel(panel) != "Links Panel A" {
		t.Fatalf("expected label carried, got %q", LatchLabel(panel))
	}

	if latch := LatchForOption(Option{ID: "opt-2", Type: OptionWorkspace}, now); latch != nil {
		t.Fatalf("expected no latch for workspace navigation, got %#v", latch)
	}
}

func TestResolvePendingLatchKeepsInfo(t *testing.T) {
	pending := PendingFocusLatch{PendingPanelID: "panel-a", LatchInfo: LatchInfo{WidgetLabel: "Links", TurnsSinceLatched: 2}}
	resolved := ResolvePendingLatch(pending, "w-9")
	if LatchID(resolved) != "w-9" || LatchLabel(resolved) != "Links" {
		t.Fatalf("unexpected resolved latch %#v", resolved)
	}
	if same := ResolvePendingLatch(pending, " "); LatchID(same) != "pending:panel-a" {
		t.Fatalf("expected pending latch kept without widget id, got %#v", same)
	}
}

func TestTickLatchExpires(t *testing.T) {
	var latch FocusLatch = ResolvedFocusLatch{WidgetID: "w-1"}
	for i := 0; i < 3; i++ {
		latch = TickLatch(latch, 3)
		if latch == nil {
			t.Fatalf("latch expired early at tick %d", i+1)
		}
	}
	if latch = TickLatch(latch, 3); latch != nil {
		t.Fatalf("expected latch to expire, got %#v", latch)
	}
}

func TestSuspendLatch(t *testing.T) {
	latch := SuspendLatch(ResolvedFocusLatch{WidgetID: "w-1"})
	if LatchActive(latch) {
		t.Fatal("expected suspended latch to be inactive")
	}
	if LatchActive(nil) {
		t.Fatal("expected nil latch to be inactive")
	}
}

func TestFocusLatchJSON(t *testing.T) {
	original := PendingFocusLatch{
		PendingPanelID: "panel-a",
		LatchInfo: LatchInfo{
			WidgetLabel:       "Links Panel A",
			LatchedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			TurnsSinceLatched: 1,
		},
	}
	raw, err := MarshalFocusLatch(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalFocusLatch(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(FocusLatch(original), decoded); diff != "" {
		t.Fatalf("unexpected latch (-want +got):\n%s", diff)
	}

	empty, err := UnmarshalFocusLatch([]byte("null"))
	if err != nil || empty != nil {
		t.Fatalf("expected nil latch for null, got %#v %v", empty, err)
	}
	if _, err := UnmarshalFocusLatch([]byte(`{"kind":"floating"}`)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
