package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LogEvent appends a session event to the event log.
func (s *SQLiteStore) LogEvent(ctx context.Context, e *Event) error {
	if e.SessionID == "" {
		return fmt.Errorf("logging event: session id is required")
	}
	now := time.Now().UTC()

	var payload sql.NullString
	if e.Payload != "" {
		payload = sql.NullString{String: e.Payload, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO session_events (session_id, event_type, payload, created_at)
		 VALUES (?, ?, ?, ?)`,
		e.SessionID, e.EventType, payload, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("logging event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting event id: %w", err)
	}

	e.ID = id
	e.CreatedAt = now
	return nil
}

// ListEvents returns the events of a session, oldest first. limit <= 0
// returns all of them.
func (s *SQLiteStore) ListEvents(ctx context.Context, sessionID string, limit int) ([]*Event, error) {
	query := `SELECT id, session_id, event_type, payload, created_at
		FROM session_events WHERE session_id = ? ORDER BY id`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e         Event
			payload   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Payload = payload.String
		e.CreatedAt = parseTime(createdAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}
