package clarify

import (
	"errors"
	"time"

	"github.com/dwizi/intent-arbiter/internal/intent"
)

var ErrScopeNotAvailable = errors.New("enrichment scope not available")

type OptionType string

const (
	OptionPanel      OptionType = "panel"
	OptionWorkspace  OptionType = "workspace"
	OptionWidgetItem OptionType = "widget_item"
	OptionNote       OptionType = "note"
	OptionEntry      OptionType = "entry"
	OptionDashboard  OptionType = "dashboard"
)

// Option is one candidate shown in a clarifier. IDs are stable within an
// option set only.
type Option struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Type     OptionType `json:"type"`
	TargetID string     `json:"target_id,omitempty"`
	WidgetID string     `json:"widget_id,omitempty"`
}

// LastClarification is the option set most recently shown to the user.
type LastClarification struct {
	MessageID      string       `json:"message_id"`
	Options        []Option     `json:"options"`
	OriginalIntent string       `json:"original_intent"`
	AttemptCount   int          `json:"attempt_count"`
	Timestamp      time.Time    `json:"timestamp"`
	Scope          intent.Scope `json:"scope"`
	ClarifierType  string       `json:"clarifier_type,omitempty"`
}

func (c *LastClarification) Active() bool {
	return c != nil && c.MessageID != "" && len(c.Options) > 0
}

func (c *LastClarification) Labels() []string {
	if c == nil {
		return nil
	}
	labels := make([]string, 0, len(c.Options))
	for _, option := range c.Options {
		labels = append(labels, option.Label)
	}
	return labels
}

func (c *LastClarification) Option(id string) (Option, bool) {
	if c == nil {
		return Option{}, false
	}
	for _, option := range c.Options {
		if option.ID == id {
			return option, true
		}
	}
	return Option{}, false
}

type ResolutionSource string

const (
	SourceOrdinal    ResolutionSource = "ordinal"
	SourceContinuity ResolutionSource = "continuity"
	SourceLabelMatch ResolutionSource = "label_match"
	SourceLLM        ResolutionSource = "llm"
	SourceVeto       ResolutionSource = "continuity_veto"
	SourceCommand    ResolutionSource = "command"
)

// SelectionActionTrace records the last action taken from an option set.
type SelectionActionTrace struct {
	Type        OptionType       `json:"type"`
	TargetRef   string           `json:"target_ref"`
	OptionID    string           `json:"option_id"`
	OptionSetID string           `json:"option_set_id"`
	Source      ResolutionSource `json:"source"`
	ResolvedAt  time.Time        `json:"resolved_at"`
}

// ContinuityState is the bounded cross-turn memory used to narrow an
// ambiguity without asking the model again.
type ContinuityState struct {
	ActiveOptionSetID       string                `json:"active_option_set_id"`
	ActiveScope             intent.Scope          `json:"active_scope"`
	RecentRejectedChoiceIDs []string              `json:"recent_rejected_choice_ids"`
	LastResolvedAction      *SelectionActionTrace `json:"last_resolved_action,omitempty"`
	PendingClarifierType    string                `json:"pending_clarifier_type,omitempty"`
}

type FallbackReason string

const (
	ReasonAbstain                 FallbackReason = "abstain"
	ReasonTimeout                 FallbackReason = "timeout"
	ReasonRateLimited             FallbackReason = "rate_limited"
	ReasonEnrichmentUnavailable   FallbackReason = "enrichment_unavailable"
	ReasonNoNewEvidence           FallbackReason = "no_new_evidence"
	ReasonScopeNotAvailable       FallbackReason = "scope_not_available"
	ReasonRetryFeatureDisabled    FallbackReason = "retry_feature_disabled"
	ReasonContractVersionMismatch FallbackReason = "contract_version_mismatch"
	ReasonInvalidNeededContext    FallbackReason = "invalid_needed_context"
	ReasonQuestionIntent          FallbackReason = "question_intent"
	ReasonFeatureDisabled         FallbackReason = "feature_disabled"
	ReasonLoopGuardContinuity     FallbackReason = "loop_guard_continuity"
)

var knownReasons = map[FallbackReason]struct{}{
	ReasonAbstain:                 {},
	ReasonTimeout:                 {},
	ReasonRateLimited:             {},
	ReasonEnrichmentUnavailable:   {},
	ReasonNoNewEvidence:           {},
	ReasonScopeNotAvailable:       {},
	ReasonRetryFeatureDisabled:    {},
	ReasonContractVersionMismatch: {},
	ReasonInvalidNeededContext:    {},
	ReasonQuestionIntent:          {},
	ReasonFeatureDisabled:         {},
	ReasonLoopGuardContinuity:     {},
}

// ParseFallbackReason reports whether raw names a known reason.
func ParseFallbackReason(raw string) (FallbackReason, bool) {
	reason := FallbackReason(raw)
	_, ok := knownReasons[reason]
	return reason, ok
}

// ArbitrationResult is the outcome of one bounded-loop run. It lives for one
// input cycle and is never persisted.
type ArbitrationResult struct {
	Attempted      bool             `json:"attempted"`
	SuggestedID    string           `json:"suggested_id,omitempty"`
	RetryAttempted bool             `json:"retry_attempted"`
	FallbackReason FallbackReason   `json:"fallback_reason,omitempty"`
	Confidence     float64          `json:"confidence,omitempty"`
	Source         ResolutionSource `json:"source,omitempty"`
	LLMCalls       int              `json:"llm_calls"`
}

func (r ArbitrationResult) Resolved() bool {
	return r.SuggestedID != "" && r.FallbackReason == ""
}

// LoopGuardRecord fingerprints the previous arbitration cycle.
type LoopGuardRecord struct {
	InputKey     string    `json:"input_key"`
	CandidateKey string    `json:"candidate_key"`
	SuggestedID  string    `json:"suggested_id,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Flags are the runtime switches for the arbitration pipeline.
type Flags struct {
	LLMFallbackEnabled             bool `json:"llm_fallback_enabled" yaml:"llm_fallback_enabled"`
	ContextRetryEnabled            bool `json:"context_retry_enabled" yaml:"context_retry_enabled"`
	AutoExecuteEnabled             bool `json:"auto_execute_enabled" yaml:"auto_execute_enabled"`
	SelectionContinuityLaneEnabled bool `json:"selection_continuity_lane_enabled" yaml:"selection_continuity_lane_enabled"`
}

const (
	DefaultMinConfidenceSelect   = 0.6
	DefaultAutoExecuteConfidence = 0.85
	DefaultContractVersion       = "2"
)

type Config struct {
	Flags                 Flags
	MinConfidenceSelect   float64
	AutoExecuteConfidence float64
	ContractVersion       string
}

func (c Config) withDefaults() Config {
	if c.MinConfidenceSelect <= 0 || c.MinConfidenceSelect > 1 {
		c.MinConfidenceSelect = DefaultMinConfidenceSelect
	}
	if c.AutoExecuteConfidence <= 0 || c.AutoExecuteConfidence > 1 {
		c.AutoExecuteConfidence = DefaultAutoExecuteConfidence
	}
	if c.ContractVersion == "" {
		c.ContractVersion = DefaultContractVersion
	}
	return c
}
