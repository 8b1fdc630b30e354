// Package store is the SQLite persistence layer for scout.
//
// A single database file holds:
// - sessions with their round, theme and dialogue state
// - insights collected per session (append-only)
// - graph snapshots: the accumulated update and the merged graph
// - an append-only event log of session activity
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/scout/internal/convo"
	"github.com/hurttlocker/scout/internal/extract"
	"github.com/hurttlocker/scout/internal/graph"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.scout/scout.db"

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is the persisted part of a session.
type SessionRecord struct {
	ID        string
	Round     int
	Theme     string
	Complete  bool
	State     convo.DialogueState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is one saved graph state.
type Snapshot struct {
	ID         int64
	SessionID  string
	Applied    extract.NetworkUpdate
	Graph      graph.Graph
	UpdateHash string
	CreatedAt  time.Time
}

// Event is an entry in the append-only event log.
type Event struct {
	ID        int64
	SessionID string
	EventType string
	Payload   string
	CreatedAt time.Time
}

// Event types.
const (
	EventCreated  = "created"
	EventReply    = "reply"
	EventFallback = "fallback"
	EventExtract  = "extract"
	EventReset    = "reset"
	EventDeleted  = "deleted"
)

// StoreStats holds row counts.
type StoreStats struct {
	SessionCount  int64
	InsightCount  int64
	SnapshotCount int64
	EventCount    int64
	DBSizeBytes   int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the storage interface.
type Store interface {
	// Sessions
	SaveSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error

	// Insights
	AddInsights(ctx context.Context, sessionID string, insights []convo.Insight) error
	ListInsights(ctx context.Context, sessionID string) ([]convo.Insight, error)

	// Graph
	SaveSnapshot(ctx context.Context, sessionID string, applied extract.NetworkUpdate, g graph.Graph) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, sessionID string) (*Snapshot, error)

	// Events
	LogEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, sessionID string, limit int) ([]*Event, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns current row counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM sessions", &stats.SessionCount},
		{"SELECT COUNT(*) FROM insights", &stats.InsightCount},
		{"SELECT COUNT(*) FROM graph_snapshots", &stats.SnapshotCount},
		{"SELECT COUNT(*) FROM session_events", &stats.EventCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}
	return stats, nil
}

// Timestamps are stored as fixed-width UTC text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
