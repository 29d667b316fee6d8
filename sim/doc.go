// Package sim implements a deterministic, event-sourced simulation engine.
//
// An Orchestrator owns a simulation clock, an append-only event log, a
// world-state reducer, a handler registry, and periodic checkpoints. Every
// state change flows through an Event: the orchestrator validates it,
// appends it to the log, folds it into the current WorldState, dispatches it
// to subscribed handlers, and occasionally snapshots the resulting state so
// that the world can later be rewound or fast-forwarded to any past instant
// by combining the nearest checkpoint with replay of the events after it.
package sim
