package spatial

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

func TestInterpolate(t *testing.T) {
	pos := mgl64.Vec3{0, 0, 0}
	vel := mgl64.Vec3{1, 2, 0}
	got := Interpolate(pos, vel, 0, 3)
	want := mgl64.Vec3{3, 6, 0}
	if got != want {
		t.Fatalf("Interpolate = %v, want %v", got, want)
	}
}

func TestDistance2DIgnoresZ(t *testing.T) {
	a := mgl64.Vec3{0, 0, 100}
	b := mgl64.Vec3{3, 4, -100}
	if d := Distance2D(a, b); d != 5 {
		t.Fatalf("Distance2D = %v, want 5", d)
	}
	if d := Distance3D(a, b); d == 5 {
		t.Fatalf("Distance3D should differ from Distance2D when Z differs")
	}
}

func TestIndexQueryRadius(t *testing.T) {
	idx := NewIndex(10)
	near := uuid.New()
	far := uuid.New()
	idx.Insert(near, mgl64.Vec3{1, 1, 0})
	idx.Insert(far, mgl64.Vec3{1000, 1000, 0})

	results := idx.QueryRadius(mgl64.Vec3{0, 0, 0}, 5, true)
	if len(results) != 1 || results[0].ID != near {
		t.Fatalf("QueryRadius returned %+v, want only %v", results, near)
	}
}

func TestIndexUpdateMovesPoint(t *testing.T) {
	idx := NewIndex(10)
	id := uuid.New()
	idx.Insert(id, mgl64.Vec3{0, 0, 0})
	idx.Update(id, mgl64.Vec3{500, 500, 500})

	if len(idx.QueryRadius(mgl64.Vec3{0, 0, 0}, 5, true)) != 0 {
		t.Fatalf("point should have moved away from the origin")
	}
	if len(idx.QueryRadius(mgl64.Vec3{500, 500, 500}, 5, true)) != 1 {
		t.Fatalf("point should now be near its new position")
	}
}

func TestIndexRemove(t *testing.T) {
	idx := NewIndex(10)
	id := uuid.New()
	idx.Insert(id, mgl64.Vec3{0, 0, 0})
	idx.Remove(id)
	if idx.Count() != 0 {
		t.Fatalf("Count() = %d after Remove, want 0", idx.Count())
	}
}

func TestIndexNearest(t *testing.T) {
	idx := NewIndex(10)
	closest := uuid.New()
	mid := uuid.New()
	farthest := uuid.New()
	idx.Insert(closest, mgl64.Vec3{1, 0, 0})
	idx.Insert(mid, mgl64.Vec3{5, 0, 0})
	idx.Insert(farthest, mgl64.Vec3{50, 0, 0})

	got := idx.Nearest(mgl64.Vec3{0, 0, 0}, 2, true)
	if len(got) != 2 {
		t.Fatalf("Nearest returned %d points, want 2", len(got))
	}
	if got[0].ID != closest || got[1].ID != mid {
		t.Fatalf("Nearest order = %+v, want closest then mid", got)
	}
}

func TestIndexQueryBBox(t *testing.T) {
	idx := NewIndex(10)
	inside := uuid.New()
	outside := uuid.New()
	idx.Insert(inside, mgl64.Vec3{2, 2, 2})
	idx.Insert(outside, mgl64.Vec3{100, 100, 100})

	got := idx.QueryBBox(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{5, 5, 5})
	if len(got) != 1 || got[0].ID != inside {
		t.Fatalf("QueryBBox = %+v, want only %v", got, inside)
	}
}

type fakeEntitySource struct{ entities []MovingEntity }

func (f fakeEntitySource) LiveMovingEntities() []MovingEntity { return f.entities }

type fakeClock struct{ t float64 }

func (f fakeClock) Time() float64 { return f.t }

type fakeCommander struct {
	calledID       uuid.UUID
	calledPosition mgl64.Vec3
	calledVelocity mgl64.Vec3
}

func (f *fakeCommander) EmitEntityMoved(_ context.Context, entityID uuid.UUID, position, velocity mgl64.Vec3) error {
	f.calledID = entityID
	f.calledPosition = position
	f.calledVelocity = velocity
	return nil
}

func TestMovementSystemTickUpdatesIndexNotState(t *testing.T) {
	id := uuid.New()
	entity := MovingEntity{ID: id, Position: mgl64.Vec3{0, 0, 0}, Velocity: mgl64.Vec3{1, 0, 0}, LastUpdateTime: 0}
	source := fakeEntitySource{entities: []MovingEntity{entity}}
	clock := fakeClock{t: 4}
	idx := NewIndex(10)

	ms := NewMovementSystem(source, clock, idx)
	ms.tick()

	got := idx.QueryRadius(mgl64.Vec3{4, 0, 0}, 0.001, true)
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("expected the entity to be indexed at its interpolated position, got %+v", got)
	}
}

func TestMovementSystemSetEntityVelocityEmitsNotMutates(t *testing.T) {
	id := uuid.New()
	entity := MovingEntity{ID: id, Position: mgl64.Vec3{0, 0, 0}, Velocity: mgl64.Vec3{2, 0, 0}, LastUpdateTime: 0}
	clock := fakeClock{t: 2}
	idx := NewIndex(10)
	ms := NewMovementSystem(fakeEntitySource{}, clock, idx)
	cmd := &fakeCommander{}

	if err := ms.SetEntityVelocity(context.Background(), cmd, entity, mgl64.Vec3{0, 5, 0}); err != nil {
		t.Fatalf("SetEntityVelocity returned error: %v", err)
	}
	if cmd.calledID != id {
		t.Fatalf("EmitEntityMoved called for %v, want %v", cmd.calledID, id)
	}
	if cmd.calledPosition != (mgl64.Vec3{4, 0, 0}) {
		t.Fatalf("EmitEntityMoved position = %v, want interpolated {4 0 0}", cmd.calledPosition)
	}
	if cmd.calledVelocity != (mgl64.Vec3{0, 5, 0}) {
		t.Fatalf("EmitEntityMoved velocity = %v, want the new velocity", cmd.calledVelocity)
	}
}
