package clarify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/intent-arbiter/internal/intent"
)

// Action is an option the user resolved to, ready to be executed.
type Action struct {
	Option      Option           `json:"option"`
	OptionSetID string           `json:"option_set_id,omitempty"`
	Source      ResolutionSource `json:"source"`
	Input       string           `json:"input"`
}

// ClarifierView is what the host renders when it has to ask again.
type ClarifierView struct {
	MessageID string         `json:"message_id"`
	Prompt    string         `json:"prompt"`
	Options   []Option       `json:"options"`
	Rejected  []string       `json:"rejected,omitempty"`
	Reason    FallbackReason `json:"reason,omitempty"`
}

// Host owns the conversation state and every side effect. The handler reads
// state from the Turn snapshot and writes only through these methods.
type Host interface {
	Enricher
	ExecuteAction(ctx context.Context, action Action) error
	ShowClarifier(ctx context.Context, view ClarifierView) error
	Acknowledge(ctx context.Context, message string) error
	UpdateContinuity(state ContinuityState)
	SetLastClarification(clarification *LastClarification)
	SetLoopGuard(record *LoopGuardRecord)
}

// Turn is the state snapshot for one user input.
type Turn struct {
	Input         string
	Scope         intent.Scope
	Clarification *LastClarification
	Continuity    ContinuityState
	LoopGuard     *LoopGuardRecord
	Context       string
	BaseMetadata  map[string]any
	Now           time.Time
}

type OutcomeKind string

const (
	OutcomeExecuted     OutcomeKind = "executed"
	OutcomeClarifier    OutcomeKind = "clarifier"
	OutcomeAcknowledged OutcomeKind = "acknowledged"
	OutcomeUnhandled    OutcomeKind = "unhandled"
)

type Outcome struct {
	Kind        OutcomeKind
	Option      *Option
	Source      ResolutionSource
	Arbitration *ArbitrationResult
}

func (o Outcome) Handled() bool {
	return o.Kind != OutcomeUnhandled
}

type Handler struct {
	arbiter *Arbiter
	logger  *slog.Logger
	newID   func() string
}

func NewHandler(arbiter *Arbiter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		arbiter: arbiter,
		logger:  logger.With("component", "clarify"),
		newID:   uuid.NewString,
	}
}

// HandleTurn intercepts input while a clarifier may be on screen. Inputs
// unrelated to clarification come back as OutcomeUnhandled.
func (h *Handler) HandleTurn(ctx context.Context, turn Turn, host Host) (Outcome, error) {
	if turn.Now.IsZero() {
		turn.Now = time.Now()
	}
	if turn.Scope == "" {
		turn.Scope = intent.ScopeChat
	}
	clarification := turn.Clarification

	if intent.IsExitPhrase(turn.Input) {
		if clarification.Active() {
			host.SetLastClarification(nil)
			host.SetLoopGuard(nil)
		}
		host.UpdateContinuity(ResetContinuity())
		if err := host.Acknowledge(ctx, "Okay, stopped."); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeAcknowledged}, nil
	}
	if !clarification.Active() {
		return Outcome{Kind: OutcomeUnhandled}, nil
	}

	cfg := h.arbiter.Config()
	labels := clarification.Labels()
	count := len(clarification.Options)
	repaired := intent.NormalizeOrdinalTypos(turn.Input)

	if selection := intent.IsSelectionOnly(repaired, count, labels, intent.ModeStrict); selection.IsSelection {
		return h.execute(ctx, turn, host, clarification.Options[selection.Index], SourceOrdinal)
	}

	if index, ok := intent.ParseRejection(turn.Input, labels); ok {
		rejected := clarification.Options[index]
		state := WithRejected(turn.Continuity, rejected.ID)
		h.logger.Info("option rejected", "option_id", rejected.ID)
		return h.reshow(ctx, turn, host, state, "", "", fmt.Sprintf("Not %s. Which one then?", rejected.Label))
	}

	embedded := intent.IsSelectionOnly(repaired, count, labels, intent.ModeEmbedded)
	if embedded.IsSelection {
		return h.execute(ctx, turn, host, clarification.Options[embedded.Index], SourceOrdinal)
	}

	if cfg.Flags.SelectionContinuityLaneEnabled && !intent.HasQuestionIntent(turn.Input) {
		resolution := ResolveContinuity(clarification, turn.Continuity, turn.Scope)
		if resolution.Resolved {
			return h.execute(ctx, turn, host, resolution.Option, SourceContinuity)
		}
		h.logger.Debug("continuity lane declined", "reason", resolution.Reason)
	}

	result, record := h.arbiter.Arbitrate(ctx, ArbitrationInput{
		Input:        turn.Input,
		Options:      clarification.Options,
		Scope:        turn.Scope,
		Context:      turn.Context,
		BaseMetadata: turn.BaseMetadata,
		Previous:     turn.LoopGuard,
		Enricher:     host,
		Now:          turn.Now,
	})
	if result.SuggestedID != "" && slices.Contains(turn.Continuity.RecentRejectedChoiceIDs, result.SuggestedID) {
		h.logger.Info("suggestion already rejected", "option_id", result.SuggestedID)
		result.SuggestedID = ""
		result.Confidence = 0
		record.SuggestedID = ""
		if result.FallbackReason == "" {
			result.FallbackReason = ReasonAbstain
		}
	}

	if record.InputKey != "" {
		host.SetLoopGuard(&record)
	}
	h.logger.Info("arbitration finished",
		"attempted", result.Attempted,
		"suggested_id", result.SuggestedID,
		"reason", result.FallbackReason,
		"llm_calls", result.LLMCalls,
		"retry", result.RetryAttempted,
	)

	if result.SuggestedID == "" &&
		result.FallbackReason != ReasonQuestionIntent && result.FallbackReason != ReasonLoopGuardContinuity {
		if resolution := ResolveContinuity(clarification, turn.Continuity, turn.Scope); resolution.Resolved {
			outcome, err := h.execute(ctx, turn, host, resolution.Option, SourceVeto)
			outcome.Arbitration = &result
			return outcome, err
		}
	}

	if result.Resolved() {
		if option, ok := clarification.Option(result.SuggestedID); ok {
			deterministic := result.Source == SourceLabelMatch
			confident := cfg.Flags.AutoExecuteEnabled && result.Confidence >= cfg.AutoExecuteConfidence
			if deterministic || confident {
				outcome, err := h.execute(ctx, turn, host, option, result.Source)
				outcome.Arbitration = &result
				return outcome, err
			}
		}
	}

	prompt := "Which one did you mean?"
	if option, ok := clarification.Option(result.SuggestedID); ok {
		prompt = fmt.Sprintf("Did you mean %s?", option.Label)
	}
	outcome, err := h.reshow(ctx, turn, host, turn.Continuity, result.SuggestedID, result.FallbackReason, prompt)
	outcome.Arbitration = &result
	return outcome, err
}

func (h *Handler) execute(ctx context.Context, turn Turn, host Host, option Option, source ResolutionSource) (Outcome, error) {
	clarification := turn.Clarification
	action := Action{
		Option:      option,
		OptionSetID: clarification.MessageID,
		Source:      source,
		Input:       turn.Input,
	}
	if err := host.ExecuteAction(ctx, action); err != nil {
		return Outcome{}, fmt.Errorf("execute %s: %w", option.ID, err)
	}
	state := turn.Continuity
	if state.ActiveOptionSetID == "" {
		state.ActiveOptionSetID = clarification.MessageID
		state.ActiveScope = clarification.Scope
	}
	host.UpdateContinuity(WithResolved(state, option, clarification.MessageID, source, turn.Now))
	host.SetLastClarification(nil)
	h.logger.Info("option executed", "option_id", option.ID, "source", source)
	selected := option
	return Outcome{Kind: OutcomeExecuted, Option: &selected, Source: source}, nil
}

// reshow asks again over the same candidates under a fresh message id, with
// the suggested option moved to the front.
func (h *Handler) reshow(ctx context.Context, turn Turn, host Host, state ContinuityState, suggestedID string, reason FallbackReason, prompt string) (Outcome, error) {
	previous := turn.Clarification
	next := &LastClarification{
		MessageID:      h.newID(),
		Options:        orderSuggestedFirst(previous.Options, suggestedID),
		OriginalIntent: previous.OriginalIntent,
		AttemptCount:   previous.AttemptCount + 1,
		Timestamp:      turn.Now.UTC(),
		Scope:          previous.Scope,
		ClarifierType:  previous.ClarifierType,
	}
	continuity := ContinuityForOptionSet(state, previous, next)
	view := ClarifierView{
		MessageID: next.MessageID,
		Prompt:    strings.TrimSpace(prompt),
		Options:   next.Options,
		Rejected:  append([]string(nil), continuity.RecentRejectedChoiceIDs...),
		Reason:    reason,
	}
	if err := host.ShowClarifier(ctx, view); err != nil {
		return Outcome{}, fmt.Errorf("show clarifier: %w", err)
	}
	host.SetLastClarification(next)
	host.UpdateContinuity(continuity)
	return Outcome{Kind: OutcomeClarifier}, nil
}

func orderSuggestedFirst(options []Option, suggestedID string) []Option {
	ordered := make([]Option, 0, len(options))
	for _, option := range options {
		if option.ID == suggestedID {
			ordered = append(ordered, option)
		}
	}
	for _, option := range options {
		if option.ID != suggestedID {
			ordered = append(ordered, option)
		}
	}
	return ordered
}
