package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func rec(t *testing.T, simTime float64, kind string) EventRecord {
	t.Helper()
	return EventRecord{
		ID:             uuid.New(),
		SimulationTime: simTime,
		Kind:           kind,
		Data:           []byte(`{}`),
		Metadata:       []byte(`{}`),
		CreatedAt:      time.Now().UTC(),
	}
}

func TestMemoryEventLogAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryEventLog()

	if err := log.Append(ctx, rec(t, 5, "entity.created")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(ctx, rec(t, 1, "entity.moved")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(ctx, rec(t, 3, "entity.moved")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	all, err := log.Query(ctx, nil, nil, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Query returned %d events, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].SimulationTime < all[i-1].SimulationTime {
			t.Fatalf("Query results not ordered by simulation time: %+v", all)
		}
	}

	from := 2.0
	filtered, err := log.Query(ctx, &from, nil, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("Query(from=2) returned %d events, want 2", len(filtered))
	}

	byKind, err := log.Query(ctx, nil, nil, []string{"entity.created"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byKind) != 1 {
		t.Fatalf("Query(kind) returned %d events, want 1", len(byKind))
	}
}

func TestMemoryEventLogStream(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryEventLog()
	_ = log.AppendBatch(ctx, []EventRecord{rec(t, 1, "a"), rec(t, 2, "b")})

	recCh, errCh := log.Stream(ctx, nil, nil, nil)
	count := 0
	for range recCh {
		count++
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	if count != 2 {
		t.Fatalf("Stream yielded %d records, want 2", count)
	}
}

func TestMemoryEventLogCountAndLatest(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryEventLog()

	if _, found, err := log.LatestTime(ctx); err != nil || found {
		t.Fatalf("LatestTime on empty log should report found=false, got found=%v err=%v", found, err)
	}

	_ = log.Append(ctx, rec(t, 10, "marker.created"))
	n, err := log.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, err=%v, want 1", n, err)
	}
	latest, found, err := log.LatestTime(ctx)
	if err != nil || !found || latest != 10 {
		t.Fatalf("LatestTime = %v, found=%v, err=%v, want 10/true", latest, found, err)
	}
}

func TestMemoryCheckpointStoreNearestBefore(t *testing.T) {
	ctx := context.Background()
	cs := NewMemoryCheckpointStore()

	_ = cs.Save(ctx, CheckpointRecord{ID: "checkpoint_000000.000000", SimulationTime: 0, StateBlob: []byte(`{}`)})
	_ = cs.Save(ctx, CheckpointRecord{ID: "checkpoint_001000.000000", SimulationTime: 1000, StateBlob: []byte(`{}`)})
	_ = cs.Save(ctx, CheckpointRecord{ID: "checkpoint_002000.000000", SimulationTime: 2000, StateBlob: []byte(`{}`)})

	rec, ok, err := cs.NearestBefore(ctx, 1500)
	if err != nil || !ok {
		t.Fatalf("NearestBefore(1500): ok=%v err=%v", ok, err)
	}
	if rec.SimulationTime != 1000 {
		t.Fatalf("NearestBefore(1500).SimulationTime = %v, want 1000", rec.SimulationTime)
	}

	_, ok, err = cs.NearestBefore(ctx, -1)
	if err != nil {
		t.Fatalf("NearestBefore(-1): err=%v", err)
	}
	if ok {
		t.Fatalf("NearestBefore(-1) should find nothing")
	}
}

func TestMemoryCheckpointStoreCleanup(t *testing.T) {
	ctx := context.Background()
	cs := NewMemoryCheckpointStore()
	for i := 0; i < 5; i++ {
		_ = cs.Save(ctx, CheckpointRecord{ID: CheckpointID(float64(i * 1000)), SimulationTime: float64(i * 1000)})
	}

	if err := cs.Cleanup(ctx, 2); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	ids, err := cs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("List after Cleanup(2) = %d ids, want 2", len(ids))
	}
}
