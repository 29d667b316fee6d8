// Package emit provides pluggable observability for a running simulation.
package emit

// Event is an observability event describing something an Orchestrator did:
// a lifecycle transition, an entity mutation, a checkpoint write, a handler
// failure. It is distinct from sim.Event, the durable domain event that
// drives state reduction — this Event exists purely for logs, traces, and
// metrics, and is never replayed.
type Event struct {
	// SimID identifies the simulation run that produced this event.
	SimID string

	// SimTime is the simulation clock reading when the event occurred.
	// Zero for events that precede clock start.
	SimTime float64

	// Component names the subsystem that emitted this event (e.g. "clock",
	// "orchestrator", "checkpoint_store", "movement_system"). Lifecycle
	// events are emitted with Component "orchestrator".
	Component string

	// Msg is a short, human-readable description (e.g. "entity_created").
	Msg string

	// Meta carries event-specific structured detail, e.g.:
	//   - "entity_id", "event_kind": identifiers
	//   - "error": failure detail
	//   - "duration_ms": operation latency
	Meta map[string]interface{}
}
