package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/intent-arbiter/internal/clarify"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string

	TranscriptRoot string
	CatalogFile    string // empty loads the built-in catalog
	FlagsFile      string

	LLMProvider    string // openai | anthropic | none
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTimeoutSec  int
	LLMCallsPerMin int

	LLMFallbackEnabled             bool
	ContextRetryEnabled            bool
	AutoExecuteEnabled             bool
	SelectionContinuityLaneEnabled bool
	MinConfidenceSelect            float64
	AutoExecuteConfidence          float64
	ContractVersion                string

	SessionTTLHours     int
	SweepSchedule       string
	FocusLatchMaxTurns  int
	ContextTurns        int
	HeartbeatStaleSec   int
	HeartbeatTickSec    int
	ShutdownTimeoutSec  int
	WebsocketOriginsCSV string
}

func FromEnv() Config {
	dataDir := stringOrDefault("INTENT_ARBITER_DATA_DIR", "/data")
	provider := strings.ToLower(stringOrDefault("INTENT_ARBITER_LLM_PROVIDER", "openai"))

	return Config{
		Environment: stringOrDefault("INTENT_ARBITER_ENV", "development"),
		HTTPAddr:    stringOrDefault("INTENT_ARBITER_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		DBPath:      stringOrDefault("INTENT_ARBITER_DB_PATH", filepath.Join(dataDir, "intent-arbiter", "sessions.sqlite")),

		TranscriptRoot: stringOrDefault("INTENT_ARBITER_TRANSCRIPT_ROOT", filepath.Join(dataDir, "transcripts")),
		CatalogFile:    strings.TrimSpace(os.Getenv("INTENT_ARBITER_CATALOG_FILE")),
		FlagsFile:      strings.TrimSpace(os.Getenv("INTENT_ARBITER_FLAGS_FILE")),

		LLMProvider:   provider,
		LLMBaseURL:    stringOrDefault("INTENT_ARBITER_LLM_BASE_URL", defaultBaseURL(provider)),
		LLMAPIKey:     strings.TrimSpace(os.Getenv("INTENT_ARBITER_LLM_API_KEY")),
		LLMModel:      strings.TrimSpace(os.Getenv("INTENT_ARBITER_LLM_MODEL")),
		LLMTimeoutSec: intOrDefault("INTENT_ARBITER_LLM_TIMEOUT_SECONDS", 8),
		// 0 disables the call budget.
		LLMCallsPerMin: intOrDefault("INTENT_ARBITER_LLM_CALLS_PER_MINUTE", 60),

		LLMFallbackEnabled:             boolOrDefault("INTENT_ARBITER_LLM_FALLBACK_ENABLED", true),
		ContextRetryEnabled:            boolOrDefault("INTENT_ARBITER_CONTEXT_RETRY_ENABLED", true),
		AutoExecuteEnabled:             boolOrDefault("INTENT_ARBITER_AUTO_EXECUTE_ENABLED", false),
		SelectionContinuityLaneEnabled: boolOrDefault("INTENT_ARBITER_CONTINUITY_LANE_ENABLED", true),
		MinConfidenceSelect:            unitOrDefault("INTENT_ARBITER_MIN_CONFIDENCE_SELECT", clarify.DefaultMinConfidenceSelect),
		AutoExecuteConfidence:          unitOrDefault("INTENT_ARBITER_AUTO_EXECUTE_CONFIDENCE", clarify.DefaultAutoExecuteConfidence),
		ContractVersion:                stringOrDefault("INTENT_ARBITER_CONTRACT_VERSION", clarify.DefaultContractVersion),

		SessionTTLHours:     intOrDefault("INTENT_ARBITER_SESSION_TTL_HOURS", 72),
		SweepSchedule:       stringOrDefault("INTENT_ARBITER_SWEEP_SCHEDULE", "@every 10m"),
		FocusLatchMaxTurns:  intOrDefault("INTENT_ARBITER_FOCUS_LATCH_MAX_TURNS", 5),
		ContextTurns:        intOrDefault("INTENT_ARBITER_CONTEXT_TURNS", 6),
		HeartbeatStaleSec:   intOrDefault("INTENT_ARBITER_HEARTBEAT_STALE_SECONDS", 1800),
		HeartbeatTickSec:    intOrDefault("INTENT_ARBITER_HEARTBEAT_INTERVAL_SECONDS", 30),
		ShutdownTimeoutSec:  intOrDefault("INTENT_ARBITER_SHUTDOWN_TIMEOUT_SECONDS", 5),
		WebsocketOriginsCSV: strings.TrimSpace(os.Getenv("INTENT_ARBITER_WS_ALLOWED_ORIGINS")),
	}
}

// Flags is the env-derived base flag set; a flags file may override it.
func (c Config) Flags() clarify.Flags {
	return clarify.Flags{
		LLMFallbackEnabled:             c.LLMFallbackEnabled,
		ContextRetryEnabled:            c.ContextRetryEnabled,
		AutoExecuteEnabled:             c.AutoExecuteEnabled,
		SelectionContinuityLaneEnabled: c.SelectionContinuityLaneEnabled,
	}
}

func (c Config) Arbiter() clarify.Config {
	return clarify.Config{
		Flags:                 c.Flags(),
		MinConfidenceSelect:   c.MinConfidenceSelect,
		AutoExecuteConfidence: c.AutoExecuteConfidence,
		ContractVersion:       c.ContractVersion,
	}
}

func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c Config) WebsocketOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.WebsocketOriginsCSV, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "anthropic":
		return "https://api.anthropic.com/v1"
	case "openai":
		return "https://api.openai.com/v1"
	default:
		return ""
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// unitOrDefault reads a value in (0, 1].
func unitOrDefault(name string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 || parsed > 1 {
		return fallback
	}
	return parsed
}
