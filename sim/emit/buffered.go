package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, keyed by SimID, for tests and
// post-run inspection. It is used in place of a mock Emitter throughout the
// sim test suite.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// HistoryFilter narrows a BufferedEmitter query. Zero-value fields are
// unconstrained; all set fields combine with AND logic.
type HistoryFilter struct {
	Component string
	Msg       string
	MinTime   *float64
	MaxTime   *float64
}

// NewBufferedEmitter returns an empty, concurrency-safe BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.SimID] = append(b.events[event.SimID], event)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		b.Emit(e)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// GetHistory returns a copy of every event recorded for simID, in emission
// order.
func (b *BufferedEmitter) GetHistory(simID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	events := b.events[simID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// GetHistoryWithFilter returns events for simID matching filter.
func (b *BufferedEmitter) GetHistoryWithFilter(simID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events[simID] {
		if filter.Component != "" && event.Component != filter.Component {
			continue
		}
		if filter.Msg != "" && event.Msg != filter.Msg {
			continue
		}
		if filter.MinTime != nil && event.SimTime < *filter.MinTime {
			continue
		}
		if filter.MaxTime != nil && event.SimTime > *filter.MaxTime {
			continue
		}
		result = append(result, event)
	}
	if result == nil {
		return []Event{}
	}
	return result
}

// Clear removes events for simID, or every event if simID is empty.
func (b *BufferedEmitter) Clear(simID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if simID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, simID)
}
