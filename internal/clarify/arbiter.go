package clarify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dwizi/intent-arbiter/internal/intent"
	"github.com/dwizi/intent-arbiter/internal/llm"
)

type ArbitrationInput struct {
	Input        string
	Options      []Option
	Scope        intent.Scope
	Context      string
	BaseMetadata map[string]any
	Previous     *LoopGuardRecord
	Enricher     Enricher
	Now          time.Time
}

// Arbiter runs the bounded resolution loop: deterministic label match, one
// model call and at most one retry with enriched context.
type Arbiter struct {
	mu     sync.RWMutex
	cfg    Config
	client llm.Clarifier
	logger *slog.Logger
}

func NewArbiter(cfg Config, client llm.Clarifier, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbiter{
		cfg:    cfg.withDefaults(),
		client: client,
		logger: logger.With("component", "arbiter"),
	}
}

func (a *Arbiter) Config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// SetFlags swaps the runtime switches; turns already running keep the
// snapshot they started with.
func (a *Arbiter) SetFlags(flags Flags) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Flags = flags
}

// Arbitrate resolves input against a frozen option list. The returned record
// becomes the loop guard for the next cycle.
func (a *Arbiter) Arbitrate(ctx context.Context, in ArbitrationInput) (ArbitrationResult, LoopGuardRecord) {
	cfg := a.Config()
	previous := LoopGuardRecord{}
	if in.Previous != nil {
		previous = *in.Previous
	}
	if intent.HasQuestionIntent(in.Input) {
		return ArbitrationResult{FallbackReason: ReasonQuestionIntent}, previous
	}
	if !cfg.Flags.LLMFallbackEnabled || a.client == nil {
		return ArbitrationResult{FallbackReason: ReasonFeatureDisabled}, previous
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	record := LoopGuardRecord{
		InputKey:     intent.Normalize(intent.NormalizeOrdinalTypos(in.Input)),
		CandidateKey: CandidateKey(in.Options),
		RecordedAt:   now.UTC(),
	}
	if in.Previous != nil && in.Previous.InputKey == record.InputKey && in.Previous.CandidateKey == record.CandidateKey {
		a.logger.Info("loop guard hit", "suggested_id", in.Previous.SuggestedID)
		return ArbitrationResult{
			SuggestedID:    in.Previous.SuggestedID,
			FallbackReason: ReasonLoopGuardContinuity,
		}, previous
	}

	if option, ok := MatchLabel(in.Input, in.Options); ok {
		record.SuggestedID = option.ID
		return ArbitrationResult{
			Attempted:   true,
			SuggestedID: option.ID,
			Confidence:  1,
			Source:      SourceLabelMatch,
		}, record
	}

	result := a.runModel(ctx, cfg, in, freezeOptions(in.Options))
	record.SuggestedID = result.SuggestedID
	return result, record
}

func (a *Arbiter) runModel(ctx context.Context, cfg Config, in ArbitrationInput, frozen []llm.OptionRef) ArbitrationResult {
	result := ArbitrationResult{Attempted: true}
	request := llm.ClarifyRequest{
		Input:           in.Input,
		Options:         frozen,
		Context:         in.Context,
		Scope:           string(in.Scope),
		ContractVersion: cfg.ContractVersion,
		Attempt:         1,
	}

	response, reason := a.call(ctx, request)
	result.LLMCalls++
	if reason != "" {
		result.FallbackReason = reason
		return result
	}
	if response.Decision != llm.DecisionRequestContext {
		return settle(cfg, result, response)
	}

	if !cfg.Flags.ContextRetryEnabled {
		result.FallbackReason = ReasonRetryFeatureDisabled
		return result
	}
	enrichment, reason := a.enrich(ctx, in, response.NeededContext)
	if reason != "" {
		result.FallbackReason = reason
		return result
	}
	if Fingerprint(enrichment.Metadata) == Fingerprint(in.BaseMetadata) {
		result.FallbackReason = ReasonNoNewEvidence
		return result
	}

	request.Context = enrichedContext(in.Context, enrichment)
	request.Attempt = 2
	result.RetryAttempted = true
	response, reason = a.call(ctx, request)
	result.LLMCalls++
	if reason != "" {
		result.FallbackReason = reason
		return result
	}
	if response.Decision == llm.DecisionRequestContext {
		result.FallbackReason = ReasonAbstain
		return result
	}
	return settle(cfg, result, response)
}

func settle(cfg Config, result ArbitrationResult, response llm.ClarifyResponse) ArbitrationResult {
	result.Confidence = response.Confidence
	switch response.Decision {
	case llm.DecisionSelect:
		if response.Confidence < cfg.MinConfidenceSelect {
			result.FallbackReason = ReasonAbstain
			return result
		}
		result.SuggestedID = response.ChoiceID
		result.Source = SourceLLM
		return result
	default:
		if reason, ok := ParseFallbackReason(response.Downgrade); ok {
			result.FallbackReason = reason
			return result
		}
		result.FallbackReason = ReasonAbstain
		return result
	}
}

func (a *Arbiter) call(ctx context.Context, request llm.ClarifyRequest) (llm.ClarifyResponse, FallbackReason) {
	response, err := a.client.Clarify(ctx, request)
	if err == nil {
		return response, ""
	}
	reason := ReasonTimeout
	if llm.IsRateLimited(err) {
		reason = ReasonRateLimited
	}
	a.logger.Warn("clarify call failed", "attempt", request.Attempt, "reason", reason, "error", err)
	return llm.ClarifyResponse{}, reason
}

func (a *Arbiter) enrich(ctx context.Context, in ArbitrationInput, needed []string) (*Enrichment, FallbackReason) {
	if in.Enricher == nil {
		return nil, ReasonEnrichmentUnavailable
	}
	enrichment, err := in.Enricher.Enrich(ctx, in.Scope, needed)
	if err != nil {
		if errors.Is(err, ErrScopeNotAvailable) && in.Scope == intent.ScopeDashboard {
			return nil, ReasonScopeNotAvailable
		}
		a.logger.Warn("enrichment failed", "scope", in.Scope, "error", err)
		return nil, ReasonEnrichmentUnavailable
	}
	if enrichment == nil || len(enrichment.Metadata) == 0 {
		return nil, ReasonEnrichmentUnavailable
	}
	return enrichment, ""
}

func freezeOptions(options []Option) []llm.OptionRef {
	frozen := make([]llm.OptionRef, 0, len(options))
	for _, option := range options {
		frozen = append(frozen, llm.OptionRef{ID: option.ID, Label: option.Label, Type: string(option.Type)})
	}
	return frozen
}
