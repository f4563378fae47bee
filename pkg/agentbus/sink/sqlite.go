package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/nickmadden/agentbus/pkg/agentbus/event"
)

// SQLiteSink journals envelopes to a SQLite database. Rows are buffered on
// Emit and written in one transaction per flush, so a chatty producer costs
// one INSERT batch per flush window rather than one per event.
//
// The journal is best-effort: the bus still guarantees nothing beyond its
// in-memory replay window, and a crash loses whatever was buffered but not
// yet flushed.
type SQLiteSink struct {
	id string

	mu      sync.Mutex
	db      *sql.DB
	pending []event.Envelope
	closed  bool
}

// ErrSinkClosed is returned by operations on a shut-down SQLiteSink.
var ErrSinkClosed = fmt.Errorf("sqlite sink: closed")

// NewSQLiteSink opens (or creates) the journal database. The path should be
// a file path (e.g. "./events.db") or ":memory:" for testing.
func NewSQLiteSink(id, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			type TEXT NOT NULL,
			session_id TEXT NOT NULL,
			correlation_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_session
		ON events(session_id, seq)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteSink{id: id, db: db}, nil
}

// ID implements Sink.
func (s *SQLiteSink) ID() string { return s.id }

// Emit buffers one envelope for the next flush.
func (s *SQLiteSink) Emit(env event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	s.pending = append(s.pending, env)
	return nil
}

// Flush writes buffered envelopes in a single transaction. INSERT OR
// REPLACE keyed on seq keeps the journal consistent if an envelope is ever
// redelivered.
func (s *SQLiteSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// FlushSync implements SyncFlusher; a SQLite write is already synchronous.
func (s *SQLiteSink) FlushSync() error {
	return s.Flush()
}

// Shutdown flushes remaining rows and closes the database.
func (s *SQLiteSink) Shutdown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.flushLocked()
	s.closed = true
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// SessionEvents reads back journaled events for one session with
// seq > afterSeq, oldest first, at most limit rows. Buffered but unflushed
// envelopes are not visible; callers wanting a complete view flush first.
func (s *SQLiteSink) SessionEvents(sessionID string, afterSeq uint64, limit int) ([]event.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSinkClosed
	}
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.Query(`
		SELECT data FROM events
		WHERE session_id = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, sessionID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var out []event.Envelope
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode event row: %w", err)
		}
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return out, nil
}

// Count returns the number of journaled events.
func (s *SQLiteSink) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSinkClosed
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *SQLiteSink) flushLocked() error {
	if s.closed {
		return ErrSinkClosed
	}
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO events
			(seq, type, session_id, correlation_id, timestamp, schema_version, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, env := range s.pending {
		data, err := env.Encode()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode seq %d: %w", env.Seq, err)
		}
		if _, err := stmt.Exec(
			env.Seq, env.Type, env.SessionID, env.CorrelationID,
			env.Timestamp, env.SchemaVersion, data,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert seq %d: %w", env.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}
