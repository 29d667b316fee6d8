package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryEventLog is an in-process EventLog, used in tests and for
// ephemeral simulations that need no durability across restarts.
type MemoryEventLog struct {
	mu     sync.RWMutex
	events []EventRecord
}

// NewMemoryEventLog returns an empty MemoryEventLog.
func NewMemoryEventLog() *MemoryEventLog { return &MemoryEventLog{} }

func (m *MemoryEventLog) Open(context.Context) error  { return nil }
func (m *MemoryEventLog) Close(context.Context) error { return nil }

func (m *MemoryEventLog) Append(_ context.Context, rec EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, rec)
	m.sortLocked()
	return nil
}

func (m *MemoryEventLog) AppendBatch(_ context.Context, recs []EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recs...)
	m.sortLocked()
	return nil
}

func (m *MemoryEventLog) sortLocked() {
	sort.SliceStable(m.events, func(i, j int) bool {
		if m.events[i].SimulationTime != m.events[j].SimulationTime {
			return m.events[i].SimulationTime < m.events[j].SimulationTime
		}
		return m.events[i].CreatedAt.Before(m.events[j].CreatedAt)
	})
}

func (m *MemoryEventLog) Query(_ context.Context, fromTime, toTime *float64, kinds []string) ([]EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kindSet := toSet(kinds)
	var out []EventRecord
	for _, e := range m.events {
		if fromTime != nil && e.SimulationTime < *fromTime {
			continue
		}
		if toTime != nil && e.SimulationTime > *toTime {
			continue
		}
		if len(kindSet) > 0 {
			if _, ok := kindSet[e.Kind]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MemoryEventLog) Stream(ctx context.Context, fromTime, toTime *float64, kinds []string) (<-chan EventRecord, <-chan error) {
	recCh := make(chan EventRecord)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)
		recs, err := m.Query(ctx, fromTime, toTime, kinds)
		if err != nil {
			errCh <- err
			return
		}
		for _, r := range recs {
			select {
			case recCh <- r:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()
	return recCh, errCh
}

func (m *MemoryEventLog) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.events)), nil
}

func (m *MemoryEventLog) LatestTime(context.Context) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.events) == 0 {
		return 0, false, nil
	}
	return m.events[len(m.events)-1].SimulationTime, true, nil
}

func (m *MemoryEventLog) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	return nil
}

func toSet(kinds []string) map[string]struct{} {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

// MemoryCheckpointStore is an in-process CheckpointStore, used in tests.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]CheckpointRecord
}

// NewMemoryCheckpointStore returns an empty MemoryCheckpointStore.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: make(map[string]CheckpointRecord)}
}

func (s *MemoryCheckpointStore) Save(_ context.Context, rec CheckpointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[rec.ID] = rec
	return nil
}

func (s *MemoryCheckpointStore) NearestBefore(_ context.Context, t float64) (CheckpointRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best CheckpointRecord
	found := false
	for _, rec := range s.checkpoints {
		if rec.SimulationTime <= t && (!found || rec.SimulationTime > best.SimulationTime) {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryCheckpointStore) Restore(_ context.Context, id string) (CheckpointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.checkpoints[id]
	if !ok {
		return CheckpointRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryCheckpointStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.checkpoints))
	for id := range s.checkpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.checkpoints[ids[i]].SimulationTime < s.checkpoints[ids[j]].SimulationTime
	})
	return ids, nil
}

func (s *MemoryCheckpointStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, id)
	return nil
}

func (s *MemoryCheckpointStore) Cleanup(_ context.Context, keepCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keepCount < 0 || len(s.checkpoints) <= keepCount {
		return nil
	}
	ids := make([]string, 0, len(s.checkpoints))
	for id := range s.checkpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.checkpoints[ids[i]].SimulationTime < s.checkpoints[ids[j]].SimulationTime
	})
	toDelete := len(ids) - keepCount
	for i := 0; i < toDelete; i++ {
		delete(s.checkpoints, ids[i])
	}
	return nil
}
