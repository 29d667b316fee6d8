package sim

import (
	"context"
	"fmt"
)

// Handler reacts to a dispatched Event. It is always invoked sequentially
// and awaited by the dispatcher: handlers never run concurrently with each
// other or with the orchestrator's own event-application step, which is
// what keeps the system's overall behavior deterministic.
type Handler func(ctx context.Context, event Event) error

// HandlerRegistry holds typed (per-Kind) and wildcard subscriptions and
// dispatches events to both, typed handlers first and in subscription
// order, followed by wildcard handlers in subscription order.
type HandlerRegistry struct {
	typed    map[EventKind][]Handler
	wildcard []Handler
	failFast bool
}

// NewHandlerRegistry returns an empty registry. When failFast is true,
// Dispatch returns on the first handler error instead of collecting every
// failure from the current event's dispatch.
func NewHandlerRegistry(failFast bool) *HandlerRegistry {
	return &HandlerRegistry{
		typed:    make(map[EventKind][]Handler),
		failFast: failFast,
	}
}

// On subscribes h to events of exactly kind.
func (r *HandlerRegistry) On(kind EventKind, h Handler) {
	r.typed[kind] = append(r.typed[kind], h)
}

// OnAny subscribes h to every event, regardless of Kind.
func (r *HandlerRegistry) OnAny(h Handler) {
	r.wildcard = append(r.wildcard, h)
}

// Count returns the number of handlers subscribed to kind. If kind is the
// zero value, it returns the total across typed and wildcard subscriptions.
func (r *HandlerRegistry) Count(kind EventKind) int {
	if kind == "" {
		total := len(r.wildcard)
		for _, hs := range r.typed {
			total += len(hs)
		}
		return total
	}
	return len(r.typed[kind])
}

// Clear removes every subscription.
func (r *HandlerRegistry) Clear() {
	r.typed = make(map[EventKind][]Handler)
	r.wildcard = nil
}

// Dispatch invokes every handler subscribed to event.Kind, then every
// wildcard handler, sequentially and in order. In fail-fast mode the first
// error aborts dispatch and is returned wrapped as CodeHandlerExecution. In
// the default log-and-continue mode every handler runs regardless of prior
// failures, and a single wrapped error summarizing all of them is returned
// (nil if none failed).
func (r *HandlerRegistry) Dispatch(ctx context.Context, event Event) error {
	var errs []error

	run := func(h Handler) error {
		if err := h(ctx, event); err != nil {
			wrapped := newError(CodeHandlerExecution, "Dispatch", err)
			if r.failFast {
				return wrapped
			}
			errs = append(errs, wrapped)
		}
		return nil
	}

	for _, h := range r.typed[event.Kind] {
		if err := run(h); err != nil {
			return err
		}
	}
	for _, h := range r.wildcard {
		if err := run(h); err != nil {
			return err
		}
	}

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return newError(CodeHandlerExecution, "Dispatch", fmt.Errorf("%d handlers failed: %v", len(errs), errs))
}
