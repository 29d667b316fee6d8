package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLEventLog is an alternate durable EventLog backend for deployments
// that need multiple readers against a shared server, where SQLite's
// single-writer/single-host model does not fit.
type MySQLEventLog struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLEventLog opens a connection pool against dsn (a
// github.com/go-sql-driver/mysql data source name) and ensures the events
// table exists.
func NewMySQLEventLog(dsn string) (*MySQLEventLog, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	log := &MySQLEventLog{db: db}
	if err := log.createSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return log, nil
}

func (m *MySQLEventLog) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS events (
			event_id VARCHAR(36) PRIMARY KEY,
			simulation_time DOUBLE NOT NULL,
			event_kind VARCHAR(128) NOT NULL,
			data JSON NOT NULL,
			metadata JSON NOT NULL,
			causation_id VARCHAR(36) NULL,
			correlation_id VARCHAR(36) NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_events_time (simulation_time, created_at),
			INDEX idx_events_kind (event_kind)
		)
	`
	if _, err := m.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

func (m *MySQLEventLog) Open(context.Context) error { return nil }

func (m *MySQLEventLog) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

func (m *MySQLEventLog) Append(ctx context.Context, rec EventRecord) error {
	return m.AppendBatch(ctx, []EventRecord{rec})
}

func (m *MySQLEventLog) AppendBatch(ctx context.Context, recs []EventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
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
			string(rec.Data), string(rec.Metadata), causation, correlation, rec.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert event %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

func (m *MySQLEventLog) Query(ctx context.Context, fromTime, toTime *float64, kinds []string) ([]EventRecord, error) {
	query, args := buildQuery(fromTime, toTime, kinds)

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EventRecord
	for rows.Next() {
		rec, err := scanMySQLEventRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (m *MySQLEventLog) Stream(ctx context.Context, fromTime, toTime *float64, kinds []string) (<-chan EventRecord, <-chan error) {
	recCh := make(chan EventRecord)
	errCh := make(chan error, 1)
	query, args := buildQuery(fromTime, toTime, kinds)

	go func() {
		defer close(recCh)
		defer close(errCh)

		m.mu.RLock()
		rows, err := m.db.QueryContext(ctx, query, args...)
		m.mu.RUnlock()
		if err != nil {
			errCh <- fmt.Errorf("query events: %w", err)
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			rec, err := scanMySQLEventRow(rows)
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

func scanMySQLEventRow(rows rowScanner) (EventRecord, error) {
	var rec EventRecord
	var idStr string
	var causation, correlation *string
	var createdAt time.Time
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
	rec.CreatedAt = createdAt
	if causation != nil {
		if cid, err := uuid.Parse(*causation); err == nil {
			rec.CausationID = &cid
		}
	}
	if correlation != nil {
		if cid, err := uuid.Parse(*correlation); err == nil {
			rec.CorrelationID = &cid
		}
	}
	return rec, nil
}

func (m *MySQLEventLog) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

func (m *MySQLEventLog) LatestTime(ctx context.Context) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t sql.NullFloat64
	if err := m.db.QueryRowContext(ctx, "SELECT MAX(simulation_time) FROM events").Scan(&t); err != nil {
		return 0, false, err
	}
	if !t.Valid {
		return 0, false, nil
	}
	return t.Float64, true, nil
}

func (m *MySQLEventLog) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.db.ExecContext(ctx, "DELETE FROM events")
	return err
}
