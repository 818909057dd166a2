package clarify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dwizi/intent-arbiter/internal/intent"
	"github.com/dwizi/intent-arbiter/internal/llm"
)

type scriptedClarifier struct {
	responses []llm.ClarifyResponse
	errs      []error
	requests  []llm.ClarifyRequest
}

func (s *scriptedClarifier) Clarify(_ context.Context, req llm.ClarifyRequest) (llm.ClarifyResponse, error) {
	req.Options = append([]llm.OptionRef(nil), req.Options...)
	s.requests = append(s.requests, req)
	index := len(s.requests) - 1
	if index < len(s.errs) && s.errs[index] != nil {
		return llm.ClarifyResponse{}, s.errs[index]
	}
	if index < len(s.responses) {
		return s.responses[index], nil
	}
	return llm.ClarifyResponse{Decision: llm.DecisionAskClarify}, nil
}

type enricherFunc func(ctx context.Context, scope intent.Scope, needed []string) (*Enrichment, error)

func (f enricherFunc) Enrich(ctx context.Context, scope intent.Scope, needed []string) (*Enrichment, error) {
	return f(ctx, scope, needed)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func allFlags() Flags {
	return Flags{
		LLMFallbackEnabled:             true,
		ContextRetryEnabled:            true,
		AutoExecuteEnabled:             true,
		SelectionContinuityLaneEnabled: true,
	}
}

func newTestArbiter(flags Flags, client llm.Clarifier) *Arbiter {
	return NewArbiter(Config{Flags: flags}, client, discardLogger())
}

func baseInput(input string) ArbitrationInput {
	return ArbitrationInput{
		Input:   input,
		Options: linksPanels(),
		Scope:   intent.ScopeChat,
		Context: "user: open links panel",
		Now:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestArbitrateLoopGuardIsIdempotent(t *testing.T) {
	client := &scriptedClarifier{responses: []llm.ClarifyResponse{
		{Decision: llm.DecisionSelect, ChoiceID: "opt-1", Confidence: 0.7},
	}}
	arbiter := newTestArbiter(allFlags(), client)

	first, record := arbiter.Arbitrate(context.Background(), baseInput("blue thing"))
	if !first.Attempted || first.SuggestedID != "opt-1" {
		t.Fatalf("unexpected first result %+v", first)
	}

	in := baseInput("  Blue   THING ")
	in.Previous = &record
	second, again := arbiter.Arbitrate(context.Background(), in)
	if second.Attempted {
		t.Fatalf("expected second cycle to be skipped, got %+v", second)
	}
	if second.SuggestedID != "opt-1" || second.FallbackReason != ReasonLoopGuardContinuity {
		t.Fatalf("expected preserved suggestion under loop guard, got %+v", second)
	}
	if len(client.requests) != 1 {
		t.Fatalf("expected one model call, got %d", len(client.requests))
	}
	if diff := cmp.Diff(record, again); diff != "" {
		t.Fatalf("expected loop guard record unchanged (-want +got):\n%s", diff)
	}
}

func TestArbitrateLoopGuardIgnoresChangedCandidates(t *testing.T) {
	client := &scriptedClarifier{}
	arbiter := newTestArbiter(allFlags(), client)
	_, record := arbiter.Arbitrate(context.Background(), baseInput("blue thing"))

	in := baseInput("blue thing")
	in.Options = orderSuggestedFirst(in.Options, "opt-2")
	in.Previous = &record
	result, _ := arbiter.Arbitrate(context.Background(), in)
	if !result.Attempted || len(client.requests) != 2 {
		t.Fatalf("expected a fresh attempt for reordered candidates, got %+v after %d calls", result, len(client.requests))
	}
}

func TestArbitrateRetryFreezesCandidates(t *testing.T) {
	client := &scriptedClarifier{responses: []llm.ClarifyResponse{
		{Decision: llm.DecisionRequestContext, NeededContext: []string{"recent_messages"}},
		{Decision: llm.DecisionSelect, ChoiceID: "opt-2", Confidence: 0.9},
	}}
	arbiter := newTestArbiter(allFlags(), client)

	in := baseInput("blue thing")
	in.Enricher = enricherFunc(func(_ context.Context, scope intent.Scope, needed []string) (*Enrichment, error) {
		if scope != intent.ScopeChat {
			t.Fatalf("unexpected scope %s", scope)
		}
		if diff := cmp.Diff([]string{"recent_messages"}, needed); diff != "" {
			t.Fatalf("unexpected needed context (-want +got):\n%s", diff)
		}
		return &Enrichment{Metadata: map[string]any{"recent_messages": []string{"I keep links in panel D"}}}, nil
	})

	result, record := arbiter.Arbitrate(context.Background(), in)
	if !result.Resolved() || result.SuggestedID != "opt-2" || result.Source != SourceLLM {
		t.Fatalf("expected retry to resolve opt-2, got %+v", result)
	}
	if !result.RetryAttempted || result.LLMCalls != 2 {
		t.Fatalf("expected exactly one retry, got %+v", result)
	}
	if record.SuggestedID != "opt-2" {
		t.Fatalf("expected loop guard to remember suggestion, got %+v", record)
	}

	first, second := client.requests[0], client.requests[1]
	if diff := cmp.Diff(first.Options, second.Options); diff != "" {
		t.Fatalf("candidates changed between attempts (-first +second):\n%s", diff)
	}
	if first.Context == second.Context {
		t.Fatal("expected retry context to differ")
	}
	if !strings.Contains(second.Context, "<enriched_evidence>") || !strings.HasPrefix(second.Context, first.Context) {
		t.Fatalf("unexpected retry context %q", second.Context)
	}
	if first.Attempt != 1 || second.Attempt != 2 {
		t.Fatalf("unexpected attempts %d %d", first.Attempt, second.Attempt)
	}
}

func TestArbitrateEmptyNeededContextWithNilEnrichment(t *testing.T) {
	client := &scriptedClarifier{responses: []llm.ClarifyResponse{
		{Decision: llm.DecisionRequestContext, NeededContext: []string{}},
	}}
	arbiter := newTestArbiter(allFlags(), client)

	calls := 0
	in := baseInput("blue thing")
	in.Enricher = enricherFunc(func(_ context.Context, _ intent.Scope, needed []string) (*Enrichment, error) {
		calls++
		if len(needed) != 0 {
			t.Fatalf("expected empty needed context, got %v", needed)
		}
		return nil, nil
	})

	result, _ := arbiter.Arbitrate(context.Background(), in)
	if result.FallbackReason != ReasonEnrichmentUnavailable {
		t.Fatalf("expected enrichment_unavailable, got %+v", result)
	}
	if result.RetryAttempted || result.LLMCalls != 1 {
		t.Fatalf("expected no retry, got %+v", result)
	}
	if calls != 1 {
		t.Fatalf("expected enrichment callback once, got %d", calls)
	}
}

func TestArbitrateRetryDisabled(t *testing.T) {
	client := &scriptedClarifier{responses: []llm.ClarifyResponse{
		{Decision: llm.DecisionRequestContext, NeededContext: []string{"recent_messages"}},
	}}
	flags := allFlags()
	flags.ContextRetryEnabled = false
	arbiter := newTestArbiter(flags, client)

	in := baseInput("blue thing")
	in.Enricher = enricherFunc(func(context.Context, intent.Scope, []string) (*Enrichment, error) {
		t.Fatal("enrichment must not run when retry is disabled")
		return nil, nil
	})

	result, _ := arbiter.Arbitrate(context.Background(), in)
	if result.FallbackReason != ReasonRetryFeatureDisabled || result.RetryAttempted {
		t.Fatalf("expected retry_feature_disabled without retry, got %+v", result)
	}
	if len(client.requests) != 1 || result.LLMCalls != 1 {
		t.Fatalf("expected exactly one model call, got %d", len(client.requests))
	}
}

func TestArbitrateEnrichmentOutcomes(t *testing.T) {
	requestContext := llm.ClarifyResponse{Decision: llm.DecisionRequestContext, NeededContext: []string{"dashboard_layout"}}
	base := map[string]any{"focused_widget": "Links"}

	tests := []struct {
		name     string
		scope    intent.Scope
		enricher Enricher
		want     FallbackReason
	}{
		{
			name:  "same evidence",
			scope: intent.ScopeChat,
			enricher: enricherFunc(func(context.Context, intent.Scope, []string) (*Enrichment, error) {
				return &Enrichment{Metadata: map[string]any{"focused_widget": "Links"}}, nil
			}),
			want: ReasonNoNewEvidence,
		},
		{
			name:  "dashboard unsupported",
			scope: intent.ScopeDashboard,
			enricher: enricherFunc(func(context.Context, intent.Scope, []string) (*Enrichment, error) {
				return nil, ErrScopeNotAvailable
			}),
			want: ReasonScopeNotAvailable,
		},
		{
			name:  "chat unsupported",
			scope: intent.ScopeChat,
			enricher: enricherFunc(func(context.Context, intent.Scope, []string) (*Enrichment, error) {
				return nil, fmt.Errorf("lookup: %w", ErrScopeNotAvailable)
			}),
			want: ReasonEnrichmentUnavailable,
		},
		{
			name:     "no enricher",
			scope:    intent.ScopeChat,
			enricher: nil,
			want:     ReasonEnrichmentUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &scriptedClarifier{responses: []llm.ClarifyResponse{requestContext}}
			arbiter := newTestArbiter(allFlags(), client)
			in := baseInput("blue thing")
			in.Scope = tc.scope
			in.BaseMetadata = base
			in.Enricher = tc.enricher

			result, _ := arbiter.Arbitrate(context.Background(), in)
			if result.FallbackReason != tc.want {
				t.Fatalf("expected %s, got %+v", tc.want, result)
			}
			if result.RetryAttempted || len(client.requests) != 1 {
				t.Fatalf("expected no retry, got %+v", result)
			}
		})
	}
}

func TestArbitrateModelOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		response   llm.ClarifyResponse
		err        error
		want       FallbackReason
		suggestion string
	}{
		{
			name:       "confident select",
			response:   llm.ClarifyResponse{Decision: llm.DecisionSelect, ChoiceID: "opt-0", Confidence: 0.6},
			suggestion: "opt-0",
		},
		{
			name:     "low confidence select",
			response: llm.ClarifyResponse{Decision: llm.DecisionSelect, ChoiceID: "opt-0", Confidence: 0.59},
			want:     ReasonAbstain,
		},
		{
			name:     "ask clarify",
			response: llm.ClarifyResponse{Decision: llm.DecisionAskClarify},
			want:     ReasonAbstain,
		},
		{
			name:     "contract mismatch",
			response: llm.ClarifyResponse{Decision: llm.DecisionAskClarify, Downgrade: llm.DowngradeContractVersionMismatch},
			want:     ReasonContractVersionMismatch,
		},
		{
			name:     "invalid needed context",
			response: llm.ClarifyResponse{Decision: llm.DecisionAskClarify, Downgrade: llm.DowngradeInvalidNeededContext},
			want:     ReasonInvalidNeededContext,
		},
		{
			name: "rate limited",
			err:  fmt.Errorf("openai: %w", llm.ErrRateLimited),
			want: ReasonRateLimited,
		},
		{
			name: "rate limit text",
			err:  errors.New("provider says: Rate limit exceeded"),
			want: ReasonRateLimited,
		},
		{
			name: "deadline",
			err:  fmt.Errorf("%w: anthropic", llm.ErrTimeout),
			want: ReasonTimeout,
		},
		{
			name: "other failure",
			err:  errors.New("connection reset"),
			want: ReasonTimeout,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &scriptedClarifier{
				responses: []llm.ClarifyResponse{tc.response},
				errs:      []error{tc.err},
			}
			result, _ := newTestArbiter(allFlags(), client).Arbitrate(context.Background(), baseInput("blue thing"))
			if result.FallbackReason != tc.want || result.SuggestedID != tc.suggestion {
				t.Fatalf("expected reason %q suggestion %q, got %+v", tc.want, tc.suggestion, result)
			}
			if !result.Attempted || result.LLMCalls != 1 {
				t.Fatalf("expected one attempted call, got %+v", result)
			}
		})
	}
}

func TestArbitratePreconditions(t *testing.T) {
	client := &scriptedClarifier{}

	question, _ := newTestArbiter(allFlags(), client).Arbitrate(context.Background(), baseInput("which one is the links panel?"))
	if question.FallbackReason != ReasonQuestionIntent || question.Attempted {
		t.Fatalf("expected question_intent, got %+v", question)
	}

	disabled, _ := newTestArbiter(Flags{}, client).Arbitrate(context.Background(), baseInput("links panel b"))
	if disabled.FallbackReason != ReasonFeatureDisabled || disabled.Attempted {
		t.Fatalf("expected feature_disabled, got %+v", disabled)
	}

	noClient, _ := newTestArbiter(allFlags(), nil).Arbitrate(context.Background(), baseInput("blue thing"))
	if noClient.FallbackReason != ReasonFeatureDisabled {
		t.Fatalf("expected feature_disabled without a client, got %+v", noClient)
	}

	if len(client.requests) != 0 {
		t.Fatalf("expected no model calls, got %d", len(client.requests))
	}
}

func TestArbitrateLabelMatchSkipsModel(t *testing.T) {
	client := &scriptedClarifier{}
	result, record := newTestArbiter(allFlags(), client).Arbitrate(context.Background(), baseInput("links panel b"))
	if !result.Resolved() || result.SuggestedID != "opt-1" || result.Source != SourceLabelMatch {
		t.Fatalf("expected deterministic opt-1, got %+v", result)
	}
	if result.RetryAttempted || len(client.requests) != 0 {
		t.Fatalf("expected no model call, got %d", len(client.requests))
	}
	if record.SuggestedID != "opt-1" || record.InputKey != "links panel b" {
		t.Fatalf("unexpected loop guard record %+v", record)
	}
}

func TestFingerprint(t *testing.T) {
	first := Fingerprint(map[string]any{"b": 2, "a": "x"})
	second := Fingerprint(map[string]any{"a": "x", "b": 2})
	if first != second {
		t.Fatalf("expected key order not to matter, got %s and %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected a sha256 hex digest, got %q", first)
	}
	if Fingerprint(map[string]any{"a": "y", "b": 2}) == first {
		t.Fatal("expected different metadata to change the fingerprint")
	}
	if Fingerprint(nil) != "" {
		t.Fatal("expected empty fingerprint for no metadata")
	}
}

func TestSetFlagsAppliesToNextCycle(t *testing.T) {
	client := &scriptedClarifier{}
	arbiter := newTestArbiter(Flags{}, client)
	arbiter.SetFlags(allFlags())
	result, _ := arbiter.Arbitrate(context.Background(), baseInput("blue thing"))
	if !result.Attempted || len(client.requests) != 1 {
		t.Fatalf("expected flags to enable the model, got %+v", result)
	}
}
