package sim

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the shape of an Event's Data payload. The set below
// covers the kinds the built-in validator and reducer recognize; an
// orchestrator does not reject unrecognized kinds, it simply skips schema
// validation and reduction for them (see Validator.Validate and Reduce).
type EventKind string

const (
	KindSimulationStarted EventKind = "simulation.started"
	KindSimulationPaused  EventKind = "simulation.paused"
	KindSimulationResumed EventKind = "simulation.resumed"
	KindSimulationStopped EventKind = "simulation.stopped"

	KindTimeScaled EventKind = "time.scaled"

	KindMarkerCreated EventKind = "marker.created"

	KindEntityCreated   EventKind = "entity.created"
	KindEntityMoved     EventKind = "entity.moved"
	KindEntityDestroyed EventKind = "entity.destroyed"

	KindCheckpointCreated  EventKind = "checkpoint.created"
	KindCheckpointRestored EventKind = "checkpoint.restored"
)

// Event is an immutable record of something that happened in the
// simulation at a particular simulation time. Once constructed via NewEvent
// it is never mutated; equality and identity are determined by ID alone.
type Event struct {
	ID             uuid.UUID
	SimulationTime float64
	Kind           EventKind
	Data           map[string]any
	Metadata       map[string]any
	CausationID    *uuid.UUID
	CorrelationID  *uuid.UUID
	CreatedAt      time.Time
}

// NewEvent constructs an Event, stamping it with a fresh ID and the current
// wall-clock time. data and metadata may be nil; callers should treat the
// returned Event as read-only thereafter.
func NewEvent(simTime float64, kind EventKind, data, metadata map[string]any) Event {
	return Event{
		ID:             uuid.New(),
		SimulationTime: simTime,
		Kind:           kind,
		Data:           data,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
}

// WithCausation returns a copy of e with CausationID set, used when an
// event is emitted as a direct consequence of handling another one.
func (e Event) WithCausation(id uuid.UUID) Event {
	e.CausationID = &id
	return e
}

// WithCorrelation returns a copy of e with CorrelationID set, used to tag a
// group of related events (e.g. everything produced by a single command).
func (e Event) WithCorrelation(id uuid.UUID) Event {
	e.CorrelationID = &id
	return e
}

// Equal reports whether two events share the same identity. Per the
// source's semantics, events are hashed/compared by ID only, not by
// content, since the same ID can never be re-emitted with different data.
func (e Event) Equal(other Event) bool { return e.ID == other.ID }

// DataJSON returns the Data payload marshaled to JSON, the encoding the
// validator and the SQL-backed event logs operate on.
func (e Event) DataJSON() ([]byte, error) { return json.Marshal(e.Data) }

// MetadataJSON returns the Metadata payload marshaled to JSON.
func (e Event) MetadataJSON() ([]byte, error) { return json.Marshal(e.Metadata) }
