package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteEventLog is the default durable EventLog, backed by pure-Go
// modernc.org/sqlite (no cgo). It is the right choice for single-process
// simulations that need persistence across restarts without standing up a
// separate database server.
type SQLiteEventLog struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	closed bool
}

// NewSQLiteEventLog opens (creating if necessary) a SQLite-backed event
// log at path. ":memory:" is accepted for ephemeral, SQL-semantics testing.
func NewSQLiteEventLog(path string) (*SQLiteEventLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	// SQLite allows exactly one writer; a single pooled connection avoids
	// SQLITE_BUSY from concurrent writers within this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	log := &SQLiteEventLog{db: db, path: path}
	if err := log.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return log, nil
}

func (s *SQLiteEventLog) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			simulation_time REAL NOT NULL,
			event_kind TEXT NOT NULL,
			data TEXT NOT NULL,
			metadata TEXT NOT NULL,
			causation_id TEXT,
			correlation_id TEXT,
			created_at TEXT NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_events_time ON events(simulation_time, created_at)"); err != nil {
		return fmt.Errorf("create idx_events_time: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_events_kind ON events(event_kind)"); err != nil {
		return fmt.Errorf("create idx_events_kind: %w", err)
	}
	return nil
}

func (s *SQLiteEventLog) Open(context.Context) error { return nil }

func (s *SQLiteEventLog) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteEventLog) Append(ctx context.Context, rec EventRecord) error {
	return s.AppendBatch(ctx, []EventRecord{rec})
}

func (s *SQLiteEventLog) AppendBatch(ctx context.Context, recs []EventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (event_id, simulation_time, event_kind, data, metadata, causation_id, correlation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range recs {
		var causation, correlation *string
		if rec.CausationID != nil {
			v := rec.CausationID.String()
			causation = &v
		}
		if rec.CorrelationID != nil {
			v := rec.CorrelationID.String()
			correlation = &v
		}
		if _, err := stmt.ExecContext(ctx, rec.ID.String(), rec.SimulationTime, rec.Kind,
			string(rec.Data), string(rec.Metadata), causation, correlation,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert event %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteEventLog) Query(ctx context.Context, fromTime, toTime *float64, kinds []string) ([]EventRecord, error) {
	query, args := buildQuery(fromTime, toTime, kinds)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EventRecord
	for rows.Next() {
		rec, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stream runs the same query as Query but yields rows from a live cursor
// as they are scanned, rather than materializing the full result set
// first. This is a genuine streaming implementation where the system this
// was distilled from only offered a batch-then-yield facade.
func (s *SQLiteEventLog) Stream(ctx context.Context, fromTime, toTime *float64, kinds []string) (<-chan EventRecord, <-chan error) {
	recCh := make(chan EventRecord)
	errCh := make(chan error, 1)

	query, args := buildQuery(fromTime, toTime, kinds)

	go func() {
		defer close(recCh)
		defer close(errCh)

		s.mu.RLock()
		rows, err := s.db.QueryContext(ctx, query, args...)
		s.mu.RUnlock()
		if err != nil {
			errCh <- fmt.Errorf("query events: %w", err)
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			rec, err := scanEventRow(rows)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case recCh <- rec:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- err
		}
	}()

	return recCh, errCh
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(rows rowScanner) (EventRecord, error) {
	var rec EventRecord
	var idStr string
	var causation, correlation *string
	var createdAt string
	var data, metadata string

	if err := rows.Scan(&idStr, &rec.SimulationTime, &rec.Kind, &data, &metadata, &causation, &correlation, &createdAt); err != nil {
		return EventRecord{}, fmt.Errorf("scan event row: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return EventRecord{}, fmt.Errorf("parse event id: %w", err)
	}
	rec.ID = id
	rec.Data = []byte(data)
	rec.Metadata = []byte(metadata)
	if causation != nil {
		cid, err := uuid.Parse(*causation)
		if err == nil {
			rec.CausationID = &cid
		}
	}
	if correlation != nil {
		cid, err := uuid.Parse(*correlation)
		if err == nil {
			rec.CorrelationID = &cid
		}
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err == nil {
		rec.CreatedAt = ts
	}
	return rec, nil
}

func buildQuery(fromTime, toTime *float64, kinds []string) (string, []any) {
	query := "SELECT event_id, simulation_time, event_kind, data, metadata, causation_id, correlation_id, created_at FROM events WHERE 1=1"
	var args []any
	if fromTime != nil {
		query += " AND simulation_time >= ?"
		args = append(args, *fromTime)
	}
	if toTime != nil {
		query += " AND simulation_time <= ?"
		args = append(args, *toTime)
	}
	if len(kinds) > 0 {
		placeholders := ""
		for i, k := range kinds {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, k)
		}
		query += fmt.Sprintf(" AND event_kind IN (%s)", placeholders)
	}
	query += " ORDER BY simulation_time ASC, created_at ASC"
	return query, args
}

func (s *SQLiteEventLog) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

func (s *SQLiteEventLog) LatestTime(ctx context.Context) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(simulation_time) FROM events").Scan(&t); err != nil {
		return 0, false, err
	}
	if !t.Valid {
		return 0, false, nil
	}
	return t.Float64, true, nil
}

func (s *SQLiteEventLog) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM events")
	return err
}
