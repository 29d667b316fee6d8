// Package store provides durable persistence for the simulation event log
// and for world-state checkpoints, with interchangeable backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested checkpoint id matches nothing.
var ErrNotFound = errors.New("store: not found")

// EventRecord is the persistence-layer representation of a domain event.
// It mirrors sim.Event field-for-field but lives in this package (rather
// than importing sim.Event directly) so that store has no dependency on
// sim, keeping sim -> store a one-way edge; the Orchestrator converts
// between sim.Event and EventRecord at the boundary.
type EventRecord struct {
	ID             uuid.UUID
	SimulationTime float64
	Kind           string
	Data           []byte // JSON-encoded
	Metadata       []byte // JSON-encoded
	CausationID    *uuid.UUID
	CorrelationID  *uuid.UUID
	CreatedAt      time.Time
}

// EventLog is durable, time-ordered, append-only storage for EventRecords.
// Three implementations exist: MemoryEventLog (tests, ephemeral runs),
// SQLiteEventLog (default durable backend), and MySQLEventLog (multi-reader
// production deployments).
type EventLog interface {
	// Open prepares the backend for use. The bundled backends create their
	// schema and connections in their constructors, so their Open is a
	// no-op. Safe to call more than once.
	Open(ctx context.Context) error

	// Close releases any held resources. Safe to call multiple times.
	Close(ctx context.Context) error

	// Append persists a single event.
	Append(ctx context.Context, rec EventRecord) error

	// AppendBatch persists every record in a single transaction where the
	// backend supports one.
	AppendBatch(ctx context.Context, recs []EventRecord) error

	// Query returns events with fromTime <= SimulationTime <= toTime
	// (either bound nil-able to mean unbounded), optionally restricted to
	// kinds, ordered by (SimulationTime ASC, CreatedAt ASC).
	Query(ctx context.Context, fromTime, toTime *float64, kinds []string) ([]EventRecord, error)

	// Stream is Query's lazily-evaluated counterpart: records are sent on
	// the returned channel as the backend produces them (e.g. via a SQL
	// cursor) rather than being materialized into a slice up front. The
	// error channel carries at most one error and is closed alongside the
	// record channel.
	Stream(ctx context.Context, fromTime, toTime *float64, kinds []string) (<-chan EventRecord, <-chan error)

	// Count returns the total number of stored events.
	Count(ctx context.Context) (int64, error)

	// LatestTime returns the SimulationTime of the most recent event, and
	// false if the log is empty.
	LatestTime(ctx context.Context) (float64, bool, error)

	// Clear deletes every event. Intended for tests.
	Clear(ctx context.Context) error
}

// CheckpointRecord is a serialized world-state snapshot.
type CheckpointRecord struct {
	ID             string
	SimulationTime float64
	StateBlob      []byte // JSON-encoded WorldState
	Metadata       map[string]any
}

// CheckpointStore persists and retrieves CheckpointRecords, one per
// snapshot, keyed by a deterministic id derived from SimulationTime.
type CheckpointStore interface {
	// Save writes rec, overwriting any existing checkpoint with the same ID.
	Save(ctx context.Context, rec CheckpointRecord) error

	// NearestBefore returns the checkpoint with the greatest SimulationTime
	// <= t, or ok=false if none exists.
	NearestBefore(ctx context.Context, t float64) (rec CheckpointRecord, ok bool, err error)

	// Restore loads the checkpoint with the given id. Returns ErrNotFound
	// if absent.
	Restore(ctx context.Context, id string) (CheckpointRecord, error)

	// List returns every stored checkpoint id, ascending by SimulationTime.
	List(ctx context.Context) ([]string, error)

	// Delete removes the checkpoint with the given id. A no-op if absent.
	Delete(ctx context.Context, id string) error

	// Cleanup removes all but the keepCount most recent checkpoints.
	Cleanup(ctx context.Context, keepCount int) error
}
