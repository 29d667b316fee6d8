package store

import (
	"context"
	"testing"
)

func TestFileCheckpointStoreSaveAndRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cs, err := NewFileCheckpointStore(dir)
	if err != nil {
		t.Fatalf("NewFileCheckpointStore: %v", err)
	}

	id := CheckpointID(120.5)
	rec := CheckpointRecord{ID: id, SimulationTime: 120.5, StateBlob: []byte(`{"entities":{}}`), Metadata: map[string]any{"note": "test"}}
	if err := cs.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := cs.Restore(ctx, id)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got.SimulationTime != 120.5 || string(got.StateBlob) != `{"entities":{}}` {
		t.Fatalf("Restore returned %+v, mismatched round trip", got)
	}
}

func TestFileCheckpointStoreRestoreMissing(t *testing.T) {
	cs, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCheckpointStore: %v", err)
	}
	if _, err := cs.Restore(context.Background(), "checkpoint_999999.000000"); err != ErrNotFound {
		t.Fatalf("Restore(missing) = %v, want ErrNotFound", err)
	}
}

func TestFileCheckpointStoreNearestBefore(t *testing.T) {
	ctx := context.Background()
	cs, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCheckpointStore: %v", err)
	}

	for _, simTime := range []float64{0, 1000, 2000, 3000} {
		id := CheckpointID(simTime)
		if err := cs.Save(ctx, CheckpointRecord{ID: id, SimulationTime: simTime, StateBlob: []byte(`{}`)}); err != nil {
			t.Fatalf("Save(%v): %v", simTime, err)
		}
	}

	rec, ok, err := cs.NearestBefore(ctx, 2500)
	if err != nil || !ok {
		t.Fatalf("NearestBefore(2500): ok=%v err=%v", ok, err)
	}
	if rec.SimulationTime != 2000 {
		t.Fatalf("NearestBefore(2500).SimulationTime = %v, want 2000", rec.SimulationTime)
	}
}

func TestFileCheckpointStoreShouldCheckpoint(t *testing.T) {
	cs, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCheckpointStore: %v", err)
	}
	cs.SetInterval(1000)

	cases := []struct {
		t    float64
		want bool
	}{
		{0, true},
		{1000, true},
		{2000, true},
		{1500, false},
		{999.9999999995, true},
	}
	for _, c := range cases {
		if got := cs.ShouldCheckpoint(c.t); got != c.want {
			t.Errorf("ShouldCheckpoint(%v) = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestFileCheckpointStoreCleanupKeepsNewest(t *testing.T) {
	ctx := context.Background()
	cs, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCheckpointStore: %v", err)
	}
	for _, simTime := range []float64{0, 1000, 2000, 3000, 4000} {
		_ = cs.Save(ctx, CheckpointRecord{ID: CheckpointID(simTime), SimulationTime: simTime, StateBlob: []byte(`{}`)})
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
	if ids[0] != CheckpointID(3000) || ids[1] != CheckpointID(4000) {
		t.Fatalf("Cleanup kept the wrong checkpoints: %v", ids)
	}
}
