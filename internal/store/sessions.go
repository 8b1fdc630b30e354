package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hurttlocker/scout/internal/convo"
	"github.com/hurttlocker/scout/internal/extract"
	"github.com/hurttlocker/scout/internal/graph"
)

// SaveSession inserts or updates a session row. CreatedAt is kept from the
// first save.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec *SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("saving session: id is required")
	}
	state, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("encoding dialogue state: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, round, theme, complete, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   round = excluded.round,
		   theme = excluded.theme,
		   complete = excluded.complete,
		   state = excluded.state,
		   updated_at = excluded.updated_at`,
		rec.ID, rec.Round, rec.Theme, rec.Complete, string(state), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", rec.ID, err)
	}
	return nil
}

// GetSession returns a session by id, or ErrNotFound.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, round, theme, complete, state, created_at, updated_at FROM sessions WHERE id = ?`, id)
	rec, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns sessions, most recently updated first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, round, theme, complete, state, created_at, updated_at FROM sessions
		 ORDER BY updated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, through foreign keys, its insights
// and snapshots. Events are kept.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var (
		rec                  SessionRecord
		state                string
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Round, &rec.Theme, &rec.Complete, &state, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(state), &rec.State); err != nil {
		return nil, fmt.Errorf("decoding dialogue state: %w", err)
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

// AddInsights appends insights to a session in one transaction.
func (s *SQLiteStore) AddInsights(ctx context.Context, sessionID string, insights []convo.Insight) error {
	if len(insights) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO insights (session_id, topic, details, relevance, round, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insight insert: %w", err)
	}
	defer stmt.Close()

	for _, in := range insights {
		created := in.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, sessionID, string(in.Topic), in.Details, in.Relevance, in.Round, formatTime(created)); err != nil {
			return fmt.Errorf("inserting insight %s: %w", in.Topic, err)
		}
	}
	return tx.Commit()
}

// ListInsights returns a session's insights in insertion order.
func (s *SQLiteStore) ListInsights(ctx context.Context, sessionID string) ([]convo.Insight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, details, relevance, round, created_at FROM insights
		 WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing insights: %w", err)
	}
	defer rows.Close()

	var out []convo.Insight
	for rows.Next() {
		var (
			in        convo.Insight
			topic     string
			createdAt string
		)
		if err := rows.Scan(&topic, &in.Details, &in.Relevance, &in.Round, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning insight: %w", err)
		}
		in.Topic = convo.Topic(topic)
		in.CreatedAt = parseTime(createdAt)
		out = append(out, in)
	}
	return out, rows.Err()
}

// SaveSnapshot stores the accumulated update and merged graph of a session.
// When the update hashes equal to the latest snapshot's, nothing is written
// and the latest snapshot is returned.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, sessionID string, applied extract.NetworkUpdate, g graph.Graph) (*Snapshot, error) {
	hash := HashUpdate(applied)

	latest, err := s.LatestSnapshot(ctx, sessionID)
	if err == nil && latest.UpdateHash == hash {
		return latest, nil
	}

	appliedJSON, err := json.Marshal(applied)
	if err != nil {
		return nil, fmt.Errorf("encoding update: %w", err)
	}
	graphJSON, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding graph: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO graph_snapshots (session_id, applied, graph, update_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(appliedJSON), string(graphJSON), hash, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting snapshot id: %w", err)
	}
	return &Snapshot{
		ID:         id,
		SessionID:  sessionID,
		Applied:    applied,
		Graph:      g,
		UpdateHash: hash,
		CreatedAt:  now,
	}, nil
}

// LatestSnapshot returns the newest snapshot of a session, or ErrNotFound.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	var (
		snap                   Snapshot
		appliedJSON, graphJSON string
		createdAt              string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, applied, graph, update_hash, created_at FROM graph_snapshots
		 WHERE session_id = ? ORDER BY id DESC LIMIT 1`, sessionID,
	).Scan(&snap.ID, &snap.SessionID, &appliedJSON, &graphJSON, &snap.UpdateHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot for %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(appliedJSON), &snap.Applied); err != nil {
		return nil, fmt.Errorf("decoding snapshot update: %w", err)
	}
	if err := json.Unmarshal([]byte(graphJSON), &snap.Graph); err != nil {
		return nil, fmt.Errorf("decoding snapshot graph: %w", err)
	}
	snap.CreatedAt = parseTime(createdAt)
	return &snap, nil
}
