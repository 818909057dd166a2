package flags

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/heartbeat"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseOverlaysOnlyNamedSwitches(t *testing.T) {
	base := clarify.Flags{LLMFallbackEnabled: true, ContextRetryEnabled: true}
	got, err := Parse([]byte("context_retry_enabled: false\nauto_execute_enabled: true\n"), base)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := clarify.Flags{LLMFallbackEnabled: true, ContextRetryEnabled: false, AutoExecuteEnabled: true}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if _, err := Parse([]byte("auto_execute_enabled: [nope"), base); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStoreMissingFileUsesBase(t *testing.T) {
	base := clarify.Flags{SelectionContinuityLaneEnabled: true}
	store, err := NewStore(filepath.Join(t.TempDir(), "flags.yaml"), base, testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.Current() != base {
		t.Fatalf("expected base flags, got %+v", store.Current())
	}
}

func TestStoreReloadNotifiesSubscribers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.yaml")
	if err := os.WriteFile(path, []byte("llm_fallback_enabled: true\n"), 0o644); err != nil {
		t.Fatalf("write flags: %v", err)
	}
	store, err := NewStore(path, clarify.Flags{}, testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if !store.Current().LLMFallbackEnabled {
		t.Fatal("expected file override on load")
	}

	var received []clarify.Flags
	store.OnChange(func(flags clarify.Flags) { received = append(received, flags) })

	if err := os.WriteFile(path, []byte("llm_fallback_enabled: false\ncontext_retry_enabled: true\n"), 0o644); err != nil {
		t.Fatalf("rewrite flags: %v", err)
	}
	store.HandleFileChange(context.Background(), path)
	store.HandleFileChange(context.Background(), path)

	if len(received) != 1 {
		t.Fatalf("expected one notification for one change, got %d", len(received))
	}
	if received[0].LLMFallbackEnabled || !received[0].ContextRetryEnabled {
		t.Fatalf("unexpected reloaded flags %+v", received[0])
	}
}

func TestStoreKeepsFlagsOnBadEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.yaml")
	if err := os.WriteFile(path, []byte("auto_execute_enabled: true\n"), 0o644); err != nil {
		t.Fatalf("write flags: %v", err)
	}
	store, err := NewStore(path, clarify.Flags{}, testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(path, []byte("auto_execute_enabled: [\n"), 0o644); err != nil {
		t.Fatalf("rewrite flags: %v", err)
	}
	registry := heartbeat.NewRegistry()
	store.SetHeartbeatReporter(registry)
	store.HandleFileChange(context.Background(), path)
	if !store.Current().AutoExecuteEnabled {
		t.Fatal("expected previous flags kept after a bad edit")
	}
	if overall := registry.Snapshot(0).Overall; overall != heartbeat.StateDegraded {
		t.Fatalf("expected flags reported degraded, got %s", overall)
	}
}
