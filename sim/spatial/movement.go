package spatial

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const targetFPS = 60

// MovingEntity is the minimal view of an entity the movement system needs:
// its last recorded position/velocity and when that position was recorded.
// It never carries a live/interpolated position — that is computed by
// Interpolate on demand.
type MovingEntity struct {
	ID             uuid.UUID
	Position       mgl64.Vec3
	Velocity       mgl64.Vec3
	LastUpdateTime float64
}

// EntitySource supplies the current set of live entities each tick. An
// Orchestrator implements this over its WorldState.
type EntitySource interface {
	LiveMovingEntities() []MovingEntity
}

// TimeSource supplies the current simulation time.
type TimeSource interface {
	Time() float64
}

// Commander lets the movement system raise domain events without knowing
// about sim.Event directly, keeping this package free of an import cycle
// back to the sim package that constructs it.
type Commander interface {
	EmitEntityMoved(ctx context.Context, entityID uuid.UUID, position, velocity mgl64.Vec3) error
}

// MovementSystem advances no state directly: each tick it computes every
// live entity's interpolated position and pushes it into the spatial
// Index, leaving the entity's stored Position/LastUpdateTime untouched.
// Those fields only ever change when the reducer applies an entity.moved
// event (see sim.Reduce), so the tick loop here is purely a read-and-index
// operation plus slow-frame diagnostics.
type MovementSystem struct {
	entities EntitySource
	clock    TimeSource
	index    *Index

	limiter *rate.Limiter
}

// NewMovementSystem wires a MovementSystem over entities/clock/index.
func NewMovementSystem(entities EntitySource, clock TimeSource, index *Index) *MovementSystem {
	return &MovementSystem{
		entities: entities,
		clock:    clock,
		index:    index,
		limiter:  rate.NewLimiter(rate.Every(time.Second/targetFPS), 1),
	}
}

// Run drives the tick loop until ctx is canceled, pacing itself at
// targetFPS via a rate.Limiter while measuring actual frame duration
// independently so slow frames can be detected and reported.
func (m *MovementSystem) Run(ctx context.Context, onSlowFrame func(actual time.Duration)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		frameBudget := time.Second / targetFPS
		for {
			if err := m.limiter.Wait(ctx); err != nil {
				return nil
			}
			start := time.Now()
			m.tick()
			elapsed := time.Since(start)
			if onSlowFrame != nil && elapsed > frameBudget*2 {
				onSlowFrame(elapsed)
			}
		}
	})
	return g.Wait()
}

func (m *MovementSystem) tick() {
	now := m.clock.Time()
	for _, e := range m.entities.LiveMovingEntities() {
		if e.Velocity == (mgl64.Vec3{}) {
			continue
		}
		live := Interpolate(e.Position, e.Velocity, e.LastUpdateTime, now)
		m.index.Update(e.ID, live)
	}
}

// EntityPosition returns entity's live, interpolated position without
// mutating anything — the same read any caller, including the orchestrator's
// query surface, uses outside the tick loop.
func (m *MovementSystem) EntityPosition(e MovingEntity) mgl64.Vec3 {
	return Interpolate(e.Position, e.Velocity, e.LastUpdateTime, m.clock.Time())
}

// SetEntityVelocity computes entity's current interpolated position, then
// asks cmd to emit an entity.moved event carrying that position and the
// new velocity. It does not write state itself: state only changes when
// the resulting event is reduced.
func (m *MovementSystem) SetEntityVelocity(ctx context.Context, cmd Commander, e MovingEntity, newVelocity mgl64.Vec3) error {
	current := m.EntityPosition(e)
	return cmd.EmitEntityMoved(ctx, e.ID, current, newVelocity)
}
