// Package store persists compressed events in a local SQLite database and
// answers time-window queries over them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ambientlog/condense/pkg/events"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// Store wraps a SQLite database holding one compressed event per row, in
// emission order.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS compressed_events(
	  id           INTEGER PRIMARY KEY,
	  ts           REAL NOT NULL,
	  device       TEXT NOT NULL,
	  type         TEXT NOT NULL,
	  duration     REAL NOT NULL,
	  payload_json TEXT NOT NULL CHECK (json_valid(payload_json))
	);
	CREATE INDEX IF NOT EXISTS idx_compressed_events_ts   ON compressed_events(ts);
	CREATE INDEX IF NOT EXISTS idx_compressed_events_type ON compressed_events(type);
	`)
	if err != nil {
		return fmt.Errorf("create event store tables: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch appends a batch of compressed events inside one transaction.
// Row order follows slice order, preserving emission order.
func (s *Store) InsertBatch(ctx context.Context, batch []events.Compressed) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO compressed_events(ts, device, type, duration, payload_json) VALUES(?,?,?,?,json(?))`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch {
		payload, err := json.Marshal(ev)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal event payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, ev.TS, ev.Device, ev.Type, ev.Duration, string(payload)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event batch: %w", err)
	}
	return nil
}

// QueryRange returns the compressed events whose timestamps fall inside
// [from, to], in emission order.
func (s *Store) QueryRange(ctx context.Context, from, to float64) ([]events.Compressed, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload_json FROM compressed_events WHERE ts >= ? AND ts <= ? ORDER BY id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query event range: %w", err)
	}
	defer rows.Close()

	var out []events.Compressed
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		var ev events.Compressed
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}

// Count reports the total number of stored events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compressed_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// CountByType reports stored event totals grouped by compressed type.
func (s *Store) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM compressed_events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		out[typ] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}
	return out, nil
}
