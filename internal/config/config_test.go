package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dwizi/intent-arbiter/internal/clarify"
)

var envNames = []string{
	"INTENT_ARBITER_ENV",
	"INTENT_ARBITER_HTTP_ADDR",
	"INTENT_ARBITER_DATA_DIR",
	"INTENT_ARBITER_DB_PATH",
	"INTENT_ARBITER_TRANSCRIPT_ROOT",
	"INTENT_ARBITER_CATALOG_FILE",
	"INTENT_ARBITER_FLAGS_FILE",
	"INTENT_ARBITER_LLM_PROVIDER",
	"INTENT_ARBITER_LLM_BASE_URL",
	"INTENT_ARBITER_LLM_API_KEY",
	"INTENT_ARBITER_LLM_MODEL",
	"INTENT_ARBITER_LLM_TIMEOUT_SECONDS",
	"INTENT_ARBITER_LLM_FALLBACK_ENABLED",
	"INTENT_ARBITER_CONTEXT_RETRY_ENABLED",
	"INTENT_ARBITER_AUTO_EXECUTE_ENABLED",
	"INTENT_ARBITER_CONTINUITY_LANE_ENABLED",
	"INTENT_ARBITER_MIN_CONFIDENCE_SELECT",
	"INTENT_ARBITER_AUTO_EXECUTE_CONFIDENCE",
	"INTENT_ARBITER_CONTRACT_VERSION",
	"INTENT_ARBITER_SESSION_TTL_HOURS",
	"INTENT_ARBITER_SWEEP_SCHEDULE",
	"INTENT_ARBITER_FOCUS_LATCH_MAX_TURNS",
	"INTENT_ARBITER_CONTEXT_TURNS",
	"INTENT_ARBITER_WS_ALLOWED_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != filepath.Join("/data", "intent-arbiter", "sessions.sqlite") {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.TranscriptRoot != filepath.Join("/data", "transcripts") {
		t.Fatalf("unexpected transcript root %q", cfg.TranscriptRoot)
	}
	if cfg.LLMProvider != "openai" || cfg.LLMBaseURL != "https://api.openai.com/v1" {
		t.Fatalf("unexpected llm defaults %q %q", cfg.LLMProvider, cfg.LLMBaseURL)
	}
	if cfg.LLMTimeout() != 8*time.Second {
		t.Fatalf("unexpected llm timeout %s", cfg.LLMTimeout())
	}
	wantFlags := clarify.Flags{
		LLMFallbackEnabled:             true,
		ContextRetryEnabled:            true,
		SelectionContinuityLaneEnabled: true,
	}
	if diff := cmp.Diff(wantFlags, cfg.Flags()); diff != "" {
		t.Fatalf("unexpected flags (-want +got):\n%s", diff)
	}
	arbiter := cfg.Arbiter()
	if arbiter.MinConfidenceSelect != 0.6 || arbiter.AutoExecuteConfidence != 0.85 || arbiter.ContractVersion != "2" {
		t.Fatalf("unexpected arbiter config %+v", arbiter)
	}
	if cfg.SessionTTL() != 72*time.Hour || cfg.SweepSchedule != "@every 10m" {
		t.Fatalf("unexpected sweep config %s %q", cfg.SessionTTL(), cfg.SweepSchedule)
	}
	if cfg.CatalogFile != "" || cfg.FlagsFile != "" || len(cfg.WebsocketOrigins()) != 0 {
		t.Fatalf("expected optional files and origins unset, got %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("INTENT_ARBITER_DATA_DIR", "/tmp/arbiter")
	t.Setenv("INTENT_ARBITER_LLM_PROVIDER", "Anthropic")
	t.Setenv("INTENT_ARBITER_LLM_TIMEOUT_SECONDS", "3")
	t.Setenv("INTENT_ARBITER_AUTO_EXECUTE_ENABLED", "yes")
	t.Setenv("INTENT_ARBITER_CONTEXT_RETRY_ENABLED", "off")
	t.Setenv("INTENT_ARBITER_MIN_CONFIDENCE_SELECT", "0.7")
	t.Setenv("INTENT_ARBITER_AUTO_EXECUTE_CONFIDENCE", "1.5")
	t.Setenv("INTENT_ARBITER_FOCUS_LATCH_MAX_TURNS", "-2")
	t.Setenv("INTENT_ARBITER_WS_ALLOWED_ORIGINS", "http://localhost:3000, ,https://app.example")

	cfg := FromEnv()
	if cfg.DBPath != filepath.Join("/tmp/arbiter", "intent-arbiter", "sessions.sqlite") {
		t.Fatalf("expected db path under data dir, got %q", cfg.DBPath)
	}
	if cfg.LLMProvider != "anthropic" || cfg.LLMBaseURL != "https://api.anthropic.com/v1" {
		t.Fatalf("unexpected provider %q %q", cfg.LLMProvider, cfg.LLMBaseURL)
	}
	if cfg.LLMTimeout() != 3*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.LLMTimeout())
	}
	if !cfg.AutoExecuteEnabled || cfg.ContextRetryEnabled {
		t.Fatalf("unexpected flags %+v", cfg.Flags())
	}
	if cfg.MinConfidenceSelect != 0.7 {
		t.Fatalf("expected min confidence override, got %v", cfg.MinConfidenceSelect)
	}
	if cfg.AutoExecuteConfidence != clarify.DefaultAutoExecuteConfidence {
		t.Fatalf("expected out-of-range confidence ignored, got %v", cfg.AutoExecuteConfidence)
	}
	if cfg.FocusLatchMaxTurns != 5 {
		t.Fatalf("expected invalid latch turns ignored, got %d", cfg.FocusLatchMaxTurns)
	}
	if diff := cmp.Diff([]string{"http://localhost:3000", "https://app.example"}, cfg.WebsocketOrigins()); diff != "" {
		t.Fatalf("unexpected origins (-want +got):\n%s", diff)
	}
}
