package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/intent"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "intent_arbiter_test.sqlite")
	sqlStore, err := New(dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return sqlStore
}

func sampleState(id string, updatedAt time.Time) SessionState {
	return SessionState{
		ID: id,
		Clarification: &clarify.LastClarification{
			MessageID: "msg-1",
			Options: []clarify.Option{
				{ID: "opt-0", Label: "Links Panel A", Type: clarify.OptionPanel, TargetID: "panel-links-a"},
				{ID: "opt-1", Label: "Links Panel B", Type: clarify.OptionPanel, TargetID: "panel-links-b"},
			},
			OriginalIntent: "open links panel",
			Timestamp:      updatedAt,
			Scope:          intent.ScopeChat,
		},
		Continuity: clarify.ContinuityState{
			ActiveOptionSetID:       "msg-1",
			ActiveScope:             intent.ScopeChat,
			RecentRejectedChoiceIDs: []string{"opt-0"},
		},
		LoopGuard: &clarify.LoopGuardRecord{InputKey: "blue thing", CandidateKey: "k", SuggestedID: "opt-1", RecordedAt: updatedAt},
		FocusLatch: clarify.PendingFocusLatch{
			PendingPanelID: "panel-links-a",
			LatchInfo:      clarify.LatchInfo{WidgetLabel: "Links Panel A", LatchedAt: updatedAt},
		},
		TurnCount: 3,
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
	}
}

func TestSessionRoundTrip(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	updatedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	state := sampleState("sess-1", updatedAt)

	if err := sqlStore.SaveSession(ctx, state); err != nil {
		t.Fatalf("save session: %v", err)
	}
	loaded, err := sqlStore.LoadSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if diff := cmp.Diff(state, loaded); diff != "" {
		t.Fatalf("unexpected session (-want +got):\n%s", diff)
	}

	state.Clarification = nil
	state.LoopGuard = nil
	state.FocusLatch = nil
	state.TurnCount = 4
	if err := sqlStore.SaveSession(ctx, state); err != nil {
		t.Fatalf("update session: %v", err)
	}
	loaded, err = sqlStore.LoadSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if loaded.Clarification != nil || loaded.LoopGuard != nil || loaded.FocusLatch != nil || loaded.TurnCount != 4 {
		t.Fatalf("expected cleared state, got %+v", loaded)
	}
}

func TestLoadSessionNotFound(t *testing.T) {
	sqlStore := newTestStore(t)
	if _, err := sqlStore.LoadSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := sqlStore.DeleteSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on delete, got %v", err)
	}
}

func TestCommitTurnAndEvents(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := sqlStore.CommitTurn(ctx, sampleState("sess-1", now), TurnEvent{
		Kind:      EventClarifier,
		Input:     "open links panel",
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("commit first turn: %v", err)
	}
	if first.ID == "" || first.SessionID != "sess-1" {
		t.Fatalf("unexpected saved event %+v", first)
	}
	if _, err := sqlStore.CommitTurn(ctx, sampleState("sess-1", now.Add(time.Minute)), TurnEvent{
		Kind:        EventExecuted,
		Input:       "the second one",
		OptionID:    "opt-1",
		OptionLabel: "Links Panel B",
		TargetID:    "panel-links-b",
		Source:      string(clarify.SourceOrdinal),
		CreatedAt:   now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("commit second turn: %v", err)
	}

	events, err := sqlStore.ListEvents(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].Kind != EventClarifier || events[1].OptionID != "opt-1" {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[1].Source != "ordinal" || events[1].TargetID != "panel-links-b" {
		t.Fatalf("unexpected executed event %+v", events[1])
	}

	if err := sqlStore.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	events, err = sqlStore.ListEvents(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("list events after delete: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected events removed with session, got %d", len(events))
	}
}

func TestCommitTurnRollsBackOnBadEvent(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	if _, err := sqlStore.CommitTurn(ctx, sampleState("sess-1", time.Now()), TurnEvent{Input: "x"}); err == nil {
		t.Fatal("expected error for event without kind")
	}
	if _, err := sqlStore.LoadSession(ctx, "sess-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not saved, got %v", err)
	}
}

func TestPruneAndListSessions(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for id, updated := range map[string]time.Time{
		"old":    now.Add(-48 * time.Hour),
		"recent": now.Add(-time.Hour),
		"fresh":  now,
	} {
		if err := sqlStore.SaveSession(ctx, sampleState(id, updated)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	removed, err := sqlStore.PruneSessions(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one pruned session, got %d", removed)
	}

	sessions, err := sqlStore.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	got := make([]string, 0, len(sessions))
	for _, session := range sessions {
		got = append(got, session.ID)
	}
	if diff := cmp.Diff([]string{"fresh", "recent"}, got); diff != "" {
		t.Fatalf("unexpected sessions (-want +got):\n%s", diff)
	}
}
