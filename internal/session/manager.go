package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/intent"
	"github.com/dwizi/intent-arbiter/internal/resolver"
	"github.com/dwizi/intent-arbiter/internal/store"
	"github.com/dwizi/intent-arbiter/internal/transcript"
)

const (
	defaultFocusLatchMaxTurns = 5
	defaultContextTurns       = 6
)

type Config struct {
	FocusLatchMaxTurns int
	ContextTurns       int
}

// Request is one user input addressed to a session. An empty SessionID
// starts a new session; an empty Scope is derived from cues and focus.
type Request struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
	Scope     string `json:"scope,omitempty"`
}

type Reply struct {
	SessionID   string                     `json:"session_id"`
	Kind        clarify.OutcomeKind        `json:"kind"`
	Message     string                     `json:"message"`
	Scope       intent.Scope               `json:"scope"`
	Action      *clarify.Action            `json:"action,omitempty"`
	Clarifier   *clarify.ClarifierView     `json:"clarifier,omitempty"`
	Arbitration *clarify.ArbitrationResult `json:"arbitration,omitempty"`
	FocusLatch  string                     `json:"focus_latch,omitempty"`
}

// Manager runs turns against persisted sessions. Turns for the same session
// are serialized; different sessions run concurrently.
type Manager struct {
	store      *store.Store
	catalog    *resolver.Catalog
	handler    *clarify.Handler
	transcript *transcript.Log
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serialises turns for one session. refs counts holders and
// waiters; the entry leaves the map when it drops to zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(sqlStore *store.Store, catalog *resolver.Catalog, handler *clarify.Handler, log *transcript.Log, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FocusLatchMaxTurns <= 0 {
		cfg.FocusLatchMaxTurns = defaultFocusLatchMaxTurns
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = defaultContextTurns
	}
	return &Manager{
		store:      sqlStore,
		catalog:    catalog,
		handler:    handler,
		transcript: log,
		cfg:        cfg,
		logger:     logger.With("component", "session"),
		now:        time.Now,
		newID:      uuid.NewString,
		locks:      map[string]*sessionLock{},
	}
}

func (m *Manager) Handle(ctx context.Context, req Request) (Reply, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return Reply{}, fmt.Errorf("input is required")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = m.newID()
	}

	unlock := m.lockSession(sessionID)
	defer unlock()

	now := m.now().UTC()
	state, err := m.store.LoadSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			return Reply{}, err
		}
		state = store.SessionState{
			ID:         sessionID,
			Continuity: clarify.ResetContinuity(),
			CreatedAt:  now,
		}
	}

	history, err := m.transcript.Tail(sessionID, m.cfg.ContextTurns)
	if err != nil {
		m.logger.Warn("read transcript failed", "session_id", sessionID, "error", err)
		history = nil
	}

	state.FocusLatch = clarify.TickLatch(state.FocusLatch, m.cfg.FocusLatchMaxTurns)
	cue := intent.ResolveScopeCue(input, m.widgetLabels()...)
	if cue.Scope == intent.ScopeChat {
		state.FocusLatch = clarify.SuspendLatch(state.FocusLatch)
	}
	scope := m.turnScope(req.Scope, cue, state.FocusLatch)
	turnInput := input
	if cue.Phrase != "" {
		if stripped := intent.StripScopeCue(input, cue); stripped != "" {
			turnInput = stripped
		}
	}

	host := &turnHost{
		manager: m,
		state:   state,
		scope:   scope,
		now:     now,
		reply:   Reply{SessionID: sessionID, Scope: scope},
	}
	turn := clarify.Turn{
		Input:         turnInput,
		Scope:         scope,
		Clarification: state.Clarification,
		Continuity:    state.Continuity,
		LoopGuard:     state.LoopGuard,
		Context:       strings.Join(history, "\n"),
		BaseMetadata:  baseMetadata(history),
		Now:           now,
	}
	outcome, err := m.handler.HandleTurn(ctx, turn, host)
	if err != nil {
		return Reply{}, err
	}
	if !outcome.Handled() {
		outcome, err = m.route(ctx, turn, host)
		if err != nil {
			return Reply{}, err
		}
	}

	host.reply.Kind = outcome.Kind
	host.reply.Arbitration = outcome.Arbitration
	host.reply.FocusLatch = clarify.LatchID(host.state.FocusLatch)

	host.state.TurnCount++
	host.state.UpdatedAt = now
	event := store.TurnEvent{
		Kind:      store.EventKind(outcome.Kind),
		Input:     input,
		Source:    string(outcome.Source),
		CreatedAt: now,
	}
	if action := host.reply.Action; action != nil {
		event.OptionID = action.Option.ID
		event.OptionLabel = action.Option.Label
		event.TargetID = action.Option.TargetID
	}
	if _, err := m.store.CommitTurn(ctx, host.state, event); err != nil {
		return Reply{}, err
	}

	m.appendTranscript(sessionID, transcript.RoleUser, input, now)
	m.appendTranscript(sessionID, transcript.RoleAssistant, host.reply.Message, now)
	m.logger.Info("turn handled",
		"session_id", sessionID,
		"kind", outcome.Kind,
		"scope", scope,
		"source", outcome.Source,
	)
	return host.reply, nil
}

// route handles input the clarification handler did not claim: explicit
// commands are resolved against the catalog.
func (m *Manager) route(ctx context.Context, turn clarify.Turn, host *turnHost) (clarify.Outcome, error) {
	_, target, ok := intent.CommandTarget(turn.Input)
	if !ok {
		host.reply.Message = "Sorry, I can only open things from your workspace. Try \"open <name>\"."
		return clarify.Outcome{Kind: clarify.OutcomeUnhandled}, nil
	}

	var result resolver.Result
	if home, found := m.homeTarget(target); found {
		result = resolver.Result{Status: resolver.StatusFound, Matches: []resolver.Item{home}}
	} else {
		result = m.catalog.ResolveAny(target)
	}

	switch result.Status {
	case resolver.StatusFound:
		option := resolver.OptionFor(result.Matches[0], "cmd-0")
		action := clarify.Action{Option: option, Source: clarify.SourceCommand, Input: turn.Input}
		if err := host.ExecuteAction(ctx, action); err != nil {
			return clarify.Outcome{}, fmt.Errorf("execute %s: %w", option.TargetID, err)
		}
		host.UpdateContinuity(clarify.WithResolved(host.state.Continuity, option, "", clarify.SourceCommand, turn.Now))
		return clarify.Outcome{Kind: clarify.OutcomeExecuted, Option: &option, Source: clarify.SourceCommand}, nil
	case resolver.StatusMultiple:
		next := &clarify.LastClarification{
			MessageID:      m.newID(),
			Options:        resolver.Candidates(result.Matches),
			OriginalIntent: turn.Input,
			Timestamp:      turn.Now.UTC(),
			Scope:          turn.Scope,
			ClarifierType:  "disambiguation",
		}
		view := clarify.ClarifierView{
			MessageID: next.MessageID,
			Prompt:    fmt.Sprintf("I found %d matches for %q. Which one?", len(next.Options), target),
			Options:   next.Options,
		}
		if err := host.ShowClarifier(ctx, view); err != nil {
			return clarify.Outcome{}, fmt.Errorf("show clarifier: %w", err)
		}
		host.SetLastClarification(next)
		host.SetLoopGuard(nil)
		host.UpdateContinuity(clarify.ContinuityForOptionSet(host.state.Continuity, turn.Clarification, next))
		return clarify.Outcome{Kind: clarify.OutcomeClarifier, Source: clarify.SourceCommand}, nil
	default:
		host.reply.Message = fmt.Sprintf("I couldn't find %q.", target)
		return clarify.Outcome{Kind: clarify.OutcomeUnhandled}, nil
	}
}

func (m *Manager) homeTarget(target string) (resolver.Item, bool) {
	if m.catalog.Home == "" || intent.Normalize(target) != "home" {
		return resolver.Item{}, false
	}
	return m.catalog.Lookup(m.catalog.Home)
}

func (m *Manager) turnScope(requested string, cue intent.ScopeCue, latch clarify.FocusLatch) intent.Scope {
	if scope := intent.ParseScope(requested); scope != intent.ScopeNone {
		return scope
	}
	if cue.Scope != intent.ScopeNone {
		return cue.Scope
	}
	if clarify.LatchActive(latch) {
		return intent.ScopeWidget
	}
	return intent.ScopeChat
}

func (m *Manager) widgetLabels() []string {
	widgets := m.catalog.Items(resolver.KindWidget)
	labels := make([]string, 0, len(widgets))
	for _, widget := range widgets {
		labels = append(labels, widget.Name)
	}
	return labels
}

func (m *Manager) appendTranscript(sessionID string, role transcript.Role, text string, now time.Time) {
	err := m.transcript.Append(transcript.Entry{SessionID: sessionID, Role: role, Text: text, Timestamp: now})
	if err != nil {
		m.logger.Warn("append transcript failed", "session_id", sessionID, "error", err)
	}
}

func (m *Manager) Session(ctx context.Context, id string) (store.SessionState, error) {
	return m.store.LoadSession(ctx, id)
}

func (m *Manager) Sessions(ctx context.Context, limit int) ([]store.SessionState, error) {
	return m.store.ListSessions(ctx, limit)
}

func (m *Manager) Events(ctx context.Context, id string, limit int) ([]store.TurnEvent, error) {
	if _, err := m.store.LoadSession(ctx, id); err != nil {
		return nil, err
	}
	return m.store.ListEvents(ctx, id, limit)
}

// Delete removes the session, its events and its transcript.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.lockSession(id)
	defer unlock()
	if err := m.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	if err := m.transcript.Remove(id); err != nil {
		m.logger.Warn("remove transcript failed", "session_id", id, "error", err)
	}
	return nil
}

// Prune deletes sessions idle longer than ttl.
func (m *Manager) Prune(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := m.now().Add(-ttl)
	removed, err := m.store.PruneSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.logger.Info("pruned idle sessions", "removed", removed, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return removed, nil
}

func (m *Manager) lockSession(id string) func() {
	m.mu.Lock()
	entry, ok := m.locks[id]
	if !ok {
		entry = &sessionLock{}
		m.locks[id] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		m.mu.Lock()
		defer m.mu.Unlock()
		entry.refs--
		if entry.refs == 0 {
			delete(m.locks, id)
		}
	}
}
