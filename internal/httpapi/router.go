package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/config"
	"github.com/dwizi/intent-arbiter/internal/heartbeat"
	"github.com/dwizi/intent-arbiter/internal/session"
	"github.com/dwizi/intent-arbiter/internal/store"
)

// Sessions is the conversation surface the router exposes.
type Sessions interface {
	Handle(ctx context.Context, req session.Request) (session.Reply, error)
	Session(ctx context.Context, id string) (store.SessionState, error)
	Events(ctx context.Context, id string, limit int) ([]store.TurnEvent, error)
	Delete(ctx context.Context, id string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type FlagSource interface {
	Current() clarify.Flags
}

type Dependencies struct {
	Config   config.Config
	Sessions Sessions
	Store    Pinger
	Flags    FlagSource
	Health   *heartbeat.Registry
	Logger   *slog.Logger
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/chat/ws", rt.handleChatSocket)
	mux.HandleFunc("GET /api/v1/sessions/{id}", rt.handleSessionGet)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", rt.handleSessionDelete)
	mux.HandleFunc("GET /api/v1/sessions/{id}/events", rt.handleSessionEvents)
	return mux
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.deps.Store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
			return
		}
	}
	payload := map[string]any{"status": "ready"}
	if r.deps.Health != nil {
		snapshot := r.deps.Health.Snapshot(time.Duration(r.deps.Config.HeartbeatStaleSec) * time.Second)
		payload["components"] = snapshot.Components
		payload["overall"] = snapshot.Overall
		if snapshot.Overall == heartbeat.StateDegraded {
			payload["status"] = "not-ready"
			writeJSON(w, http.StatusServiceUnavailable, payload)
			return
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"name":         "intent-arbiter",
		"environment":  r.deps.Config.Environment,
		"llm_provider": r.deps.Config.LLMProvider,
	}
	if r.deps.Flags != nil {
		payload["flags"] = r.deps.Flags.Current()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var payload session.Request
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.Input) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
		return
	}
	reply, err := r.deps.Sessions.Handle(req.Context(), payload)
	if err != nil {
		r.deps.Logger.Error("chat turn failed", "session_id", payload.SessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type sessionView struct {
	ID            string                     `json:"id"`
	Clarification *clarify.LastClarification `json:"clarification,omitempty"`
	Continuity    clarify.ContinuityState    `json:"continuity"`
	LoopGuard     *clarify.LoopGuardRecord   `json:"loop_guard,omitempty"`
	FocusLatch    *focusLatchView            `json:"focus_latch,omitempty"`
	TurnCount     int                        `json:"turn_count"`
	CreatedAtUnix int64                      `json:"created_at_unix"`
	UpdatedAtUnix int64                      `json:"updated_at_unix"`
}

type focusLatchView struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	Active    bool   `json:"active"`
	Suspended bool   `json:"suspended"`
}

func viewSession(state store.SessionState) sessionView {
	view := sessionView{
		ID:            state.ID,
		Clarification: state.Clarification,
		Continuity:    state.Continuity,
		LoopGuard:     state.LoopGuard,
		TurnCount:     state.TurnCount,
		CreatedAtUnix: state.CreatedAt.Unix(),
		UpdatedAtUnix: state.UpdatedAt.Unix(),
	}
	if state.FocusLatch != nil {
		active := clarify.LatchActive(state.FocusLatch)
		view.FocusLatch = &focusLatchView{
			ID:        clarify.LatchID(state.FocusLatch),
			Kind:      clarify.LatchKind(state.FocusLatch),
			Label:     clarify.LatchLabel(state.FocusLatch),
			Active:    active,
			Suspended: !active,
		}
	}
	return view
}

func (r *router) handleSessionGet(w http.ResponseWriter, req *http.Request) {
	state, err := r.deps.Sessions.Session(req.Context(), req.PathValue("id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(state))
}

func (r *router) handleSessionDelete(w http.ResponseWriter, req *http.Request) {
	if err := r.deps.Sessions.Delete(req.Context(), req.PathValue("id")); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *router) handleSessionEvents(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(req.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	events, err := r.deps.Sessions.Events(req.Context(), req.PathValue("id"), limit)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if events == nil {
		events = []store.TurnEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrSessionNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
