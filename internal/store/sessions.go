package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwizi/intent-arbiter/internal/clarify"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionState is the cross-turn memory of one conversation.
type SessionState struct {
	ID            string
	Clarification *clarify.LastClarification
	Continuity    clarify.ContinuityState
	LoopGuard     *clarify.LoopGuardRecord
	FocusLatch    clarify.FocusLatch
	TurnCount     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const sessionColumns = `id, clarification_json, continuity_json, loop_guard_json, focus_latch_json, turn_count, created_at_unix, updated_at_unix`

func (s *Store) LoadSession(ctx context.Context, id string) (SessionState, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SessionState{}, ErrSessionNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	state, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionState{}, ErrSessionNotFound
		}
		return SessionState{}, fmt.Errorf("load session: %w", err)
	}
	return state, nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionState, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionState
	for rows.Next() {
		state, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// CommitTurn saves the session and its turn event atomically.
func (s *Store) CommitTurn(ctx context.Context, state SessionState, event TurnEvent) (TurnEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TurnEvent{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveSessionTx(ctx, tx, state); err != nil {
		return TurnEvent{}, err
	}
	event.SessionID = state.ID
	saved, err := insertEventTx(ctx, tx, event)
	if err != nil {
		return TurnEvent{}, err
	}
	if err := tx.Commit(); err != nil {
		return TurnEvent{}, fmt.Errorf("commit turn: %w", err)
	}
	return saved, nil
}

func (s *Store) SaveSession(ctx context.Context, state SessionState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := saveSessionTx(ctx, tx, state); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// PruneSessions deletes sessions idle since before cutoff.
func (s *Store) PruneSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at_unix < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sessions rows: %w", err)
	}
	return affected, nil
}

func saveSessionTx(ctx context.Context, tx *sql.Tx, state SessionState) error {
	state.ID = strings.TrimSpace(state.ID)
	if state.ID == "" {
		return fmt.Errorf("session id is required")
	}
	now := time.Now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = now
	}

	clarification, err := jsonOrNull(state.Clarification, state.Clarification == nil)
	if err != nil {
		return fmt.Errorf("encode clarification: %w", err)
	}
	continuity, err := json.Marshal(state.Continuity)
	if err != nil {
		return fmt.Errorf("encode continuity: %w", err)
	}
	loopGuard, err := jsonOrNull(state.LoopGuard, state.LoopGuard == nil)
	if err != nil {
		return fmt.Errorf("encode loop guard: %w", err)
	}
	var latch any
	if state.FocusLatch != nil {
		raw, err := clarify.MarshalFocusLatch(state.FocusLatch)
		if err != nil {
			return err
		}
		latch = string(raw)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			clarification_json = excluded.clarification_json,
			continuity_json = excluded.continuity_json,
			loop_guard_json = excluded.loop_guard_json,
			focus_latch_json = excluded.focus_latch_json,
			turn_count = excluded.turn_count,
			updated_at_unix = excluded.updated_at_unix`,
		state.ID,
		clarification,
		string(continuity),
		loopGuard,
		latch,
		state.TurnCount,
		state.CreatedAt.UTC().Unix(),
		state.UpdatedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionState, error) {
	var (
		state                           SessionState
		clarification, loopGuard, latch sql.NullString
		continuity                      string
		createdAtUnix, updatedAtUnix    int64
	)
	if err := row.Scan(&state.ID, &clarification, &continuity, &loopGuard, &latch, &state.TurnCount, &createdAtUnix, &updatedAtUnix); err != nil {
		return SessionState{}, err
	}
	if clarification.Valid {
		state.Clarification = &clarify.LastClarification{}
		if err := json.Unmarshal([]byte(clarification.String), state.Clarification); err != nil {
			return SessionState{}, fmt.Errorf("decode clarification: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(continuity), &state.Continuity); err != nil {
		return SessionState{}, fmt.Errorf("decode continuity: %w", err)
	}
	if loopGuard.Valid {
		state.LoopGuard = &clarify.LoopGuardRecord{}
		if err := json.Unmarshal([]byte(loopGuard.String), state.LoopGuard); err != nil {
			return SessionState{}, fmt.Errorf("decode loop guard: %w", err)
		}
	}
	if latch.Valid {
		decoded, err := clarify.UnmarshalFocusLatch([]byte(latch.String))
		if err != nil {
			return SessionState{}, err
		}
		state.FocusLatch = decoded
	}
	state.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	state.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return state, nil
}

func jsonOrNull(value any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
