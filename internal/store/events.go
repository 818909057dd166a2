package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventExecuted     EventKind = "executed"
	EventClarifier    EventKind = "clarifier"
	EventAcknowledged EventKind = "acknowledged"
	EventUnhandled    EventKind = "unhandled"
)

// TurnEvent is the audit row for one handled input. Only the outcome is
// stored, never the arbitration details.
type TurnEvent struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Kind        EventKind `json:"kind"`
	Input       string    `json:"input"`
	OptionID    string    `json:"option_id,omitempty"`
	OptionLabel string    `json:"option_label,omitempty"`
	TargetID    string    `json:"target_id,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) ListEvents(ctx context.Context, sessionID string, limit int) ([]TurnEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, kind, input, option_id, option_label, target_id, source, created_at_unix
		 FROM turn_events
		 WHERE session_id = ?
		 ORDER BY created_at_unix ASC, rowid ASC
		 LIMIT ?`,
		strings.TrimSpace(sessionID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list turn events: %w", err)
	}
	defer rows.Close()

	var events []TurnEvent
	for rows.Next() {
		var (
			event                                   TurnEvent
			optionID, optionLabel, targetID, source sql.NullString
			createdAtUnix                           int64
		)
		if err := rows.Scan(&event.ID, &event.SessionID, &event.Kind, &event.Input, &optionID, &optionLabel, &targetID, &source, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan turn event: %w", err)
		}
		event.OptionID = stringOrEmpty(optionID)
		event.OptionLabel = stringOrEmpty(optionLabel)
		event.TargetID = stringOrEmpty(targetID)
		event.Source = stringOrEmpty(source)
		event.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn events: %w", err)
	}
	return events, nil
}

func insertEventTx(ctx context.Context, tx *sql.Tx, event TurnEvent) (TurnEvent, error) {
	if strings.TrimSpace(event.ID) == "" {
		event.ID = "evt_" + uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Kind == "" {
		return TurnEvent{}, fmt.Errorf("turn event kind is required")
	}
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO turn_events (id, session_id, kind, input, option_id, option_label, target_id, source, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.SessionID,
		string(event.Kind),
		event.Input,
		nullIfEmpty(event.OptionID),
		nullIfEmpty(event.OptionLabel),
		nullIfEmpty(event.TargetID),
		nullIfEmpty(event.Source),
		event.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return TurnEvent{}, fmt.Errorf("insert turn event: %w", err)
	}
	event.CreatedAt = time.Unix(event.CreatedAt.UTC().Unix(), 0).UTC()
	return event, nil
}
