package sim

import (
	"errors"
	"fmt"
)

// errPositiveScale is the underlying cause wrapped by option validators
// that require a strictly positive value.
var errPositiveScale = errors.New("value must be positive")

// ErrorCode classifies the failure modes an Orchestrator and its
// collaborators can report. Codes group into four families mirroring the
// subsystems that raise them: event-store, checkpoint, simulation lifecycle,
// and handler dispatch.
type ErrorCode string

const (
	// CodeEventPersistence indicates an event failed to append to the log.
	CodeEventPersistence ErrorCode = "event_persistence"
	// CodeEventRetrieval indicates a query against the event log failed.
	CodeEventRetrieval ErrorCode = "event_retrieval"
	// CodeEventValidation indicates an event did not satisfy its schema.
	CodeEventValidation ErrorCode = "event_validation"

	// CodeCheckpointCreation indicates a checkpoint could not be written.
	CodeCheckpointCreation ErrorCode = "checkpoint_creation"
	// CodeCheckpointRestore indicates a checkpoint could not be deserialized.
	CodeCheckpointRestore ErrorCode = "checkpoint_restore"
	// CodeCheckpointNotFound indicates the requested checkpoint does not exist.
	CodeCheckpointNotFound ErrorCode = "checkpoint_not_found"

	// CodeSimulationState indicates an operation was attempted from an
	// incompatible clock lifecycle state (e.g. Pause while Stopped).
	CodeSimulationState ErrorCode = "simulation_state"
	// CodeTimeSeek indicates a seek target could not be reconstructed.
	CodeTimeSeek ErrorCode = "time_seek"
	// CodeInvalidTimeScale indicates a non-positive time scale was supplied.
	CodeInvalidTimeScale ErrorCode = "invalid_time_scale"

	// CodeHandlerExecution indicates a subscribed handler returned an error.
	CodeHandlerExecution ErrorCode = "handler_execution"
)

// Error is the single error type returned across the sim module. Go has no
// exception hierarchy, so the taxonomy that the source models as a tree of
// exception classes is flattened here into one tagged struct: Code
// identifies the family/leaf, Op names the operation that failed, and Err
// carries the underlying cause so callers can still errors.Is/As through it.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sim: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("sim: %s: %s", e.Op, e.Code)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Code, which is how
// callers are expected to test for a particular failure family:
//
//	if errors.Is(err, &sim.Error{Code: sim.CodeCheckpointNotFound}) { ... }
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}
