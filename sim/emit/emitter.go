package emit

import "context"

// Emitter receives observability events from a running simulation.
//
// Implementations should be non-blocking (never slow down the orchestrator's
// single-threaded control path), safe to reuse across multiple Emit calls,
// and resilient: Emit must never panic, and a failing backend should drop or
// buffer events rather than propagate an error up into the simulation loop.
type Emitter interface {
	// Emit sends a single observability event to the configured backend.
	Emit(event Event)

	// EmitBatch sends multiple events in one call, preserving order.
	// Returns an error only on catastrophic, non-per-event failures.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been sent, or ctx expires.
	// Safe to call multiple times.
	Flush(ctx context.Context) error
}
