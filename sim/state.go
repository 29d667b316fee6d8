package sim

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Entity is a positioned, optionally-moving object in the simulated world.
// Position and LastUpdateTime are only ever written by the reducer in
// response to entity.created / entity.moved events; nothing else is
// permitted to mutate them directly (see the movement system's
// read-only interpolation contract).
type Entity struct {
	ID             uuid.UUID
	Type           string
	Position       mgl64.Vec3
	Velocity       mgl64.Vec3
	Heading        float64
	Speed          float64
	MaxSpeed       float64
	CreatedAt      float64
	DestroyedAt    *float64
	Waypoints      []mgl64.Vec3
	Metadata       map[string]any
	LastUpdateTime float64
}

// Alive reports whether the entity has not yet been destroyed.
func (e *Entity) Alive() bool { return e.DestroyedAt == nil }

// WorldState is the reduced, queryable projection of every event applied so
// far. It is the unit that gets snapshotted into a Checkpoint and is the
// only mutable shared state an Orchestrator keeps beyond the log itself.
type WorldState struct {
	SimulationTime float64
	EventCount     int64
	Entities       map[uuid.UUID]*Entity
	EntityTypes    map[string]map[uuid.UUID]struct{}
}

// NewWorldState returns an empty world, the starting point for both a
// fresh simulation and a seek that finds no checkpoint before its target.
func NewWorldState() *WorldState {
	return &WorldState{
		Entities:    make(map[uuid.UUID]*Entity),
		EntityTypes: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Clone returns a deep-enough copy of s suitable for snapshotting: entities
// are copied by value (their slice/map fields are copied too) so that
// subsequent mutation of the live state cannot corrupt a saved checkpoint.
func (s *WorldState) Clone() *WorldState {
	out := NewWorldState()
	out.SimulationTime = s.SimulationTime
	out.EventCount = s.EventCount
	for id, e := range s.Entities {
		clone := *e
		clone.Waypoints = append([]mgl64.Vec3(nil), e.Waypoints...)
		if e.Metadata != nil {
			clone.Metadata = make(map[string]any, len(e.Metadata))
			for k, v := range e.Metadata {
				clone.Metadata[k] = v
			}
		}
		if e.DestroyedAt != nil {
			d := *e.DestroyedAt
			clone.DestroyedAt = &d
		}
		out.Entities[id] = &clone
	}
	for t, ids := range s.EntityTypes {
		set := make(map[uuid.UUID]struct{}, len(ids))
		for id := range ids {
			set[id] = struct{}{}
		}
		out.EntityTypes[t] = set
	}
	return out
}

// Reduce folds event into state in place and returns state for chaining.
// It is a pure function of (state, event): the same pair always produces
// the same resulting state, which is the property the seek protocol's
// replay-from-checkpoint correctness depends on.
func Reduce(state *WorldState, event Event) *WorldState {
	state.SimulationTime = event.SimulationTime
	state.EventCount++

	switch event.Kind {
	case KindEntityCreated:
		applyEntityCreated(state, event)
	case KindEntityMoved:
		applyEntityMoved(state, event)
	case KindEntityDestroyed:
		applyEntityDestroyed(state, event)
	}
	return state
}

func applyEntityCreated(state *WorldState, event Event) {
	id, ok := dataUUID(event.Data, "entity_id")
	if !ok {
		return
	}
	entityType, _ := event.Data["entity_type"].(string)
	position := dataVec3(event.Data, "position")
	maxSpeed := 10.0
	if v, ok := event.Data["max_speed"].(float64); ok {
		maxSpeed = v
	}
	metadata, _ := event.Data["metadata"].(map[string]any)

	entity := &Entity{
		ID:             id,
		Type:           entityType,
		Position:       position,
		MaxSpeed:       maxSpeed,
		CreatedAt:      event.SimulationTime,
		Metadata:       metadata,
		LastUpdateTime: event.SimulationTime,
	}
	state.Entities[id] = entity

	set, ok := state.EntityTypes[entityType]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		state.EntityTypes[entityType] = set
	}
	set[id] = struct{}{}
}

func applyEntityMoved(state *WorldState, event Event) {
	id, ok := dataUUID(event.Data, "entity_id")
	if !ok {
		return
	}
	entity, ok := state.Entities[id]
	if !ok || !entity.Alive() {
		return
	}
	entity.Position = dataVec3(event.Data, "position")
	entity.Velocity = dataVec3(event.Data, "velocity")
	entity.LastUpdateTime = event.SimulationTime
	if heading, ok := event.Data["heading"].(float64); ok {
		entity.Heading = heading
	}
	if speed, ok := event.Data["speed"].(float64); ok {
		entity.Speed = speed
	}
}

func applyEntityDestroyed(state *WorldState, event Event) {
	id, ok := dataUUID(event.Data, "entity_id")
	if !ok {
		return
	}
	entity, ok := state.Entities[id]
	if !ok || !entity.Alive() {
		return
	}
	t := event.SimulationTime
	entity.DestroyedAt = &t
	if set, ok := state.EntityTypes[entity.Type]; ok {
		delete(set, id)
	}
}

func dataUUID(data map[string]any, key string) (uuid.UUID, bool) {
	raw, ok := data[key]
	if !ok {
		return uuid.UUID{}, false
	}
	switch v := raw.(type) {
	case uuid.UUID:
		return v, true
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.UUID{}, false
		}
		return id, true
	default:
		return uuid.UUID{}, false
	}
}

func dataVec3(data map[string]any, key string) mgl64.Vec3 {
	raw, ok := data[key]
	if !ok {
		return mgl64.Vec3{}
	}
	switch v := raw.(type) {
	case mgl64.Vec3:
		return v
	case [3]float64:
		return mgl64.Vec3{v[0], v[1], v[2]}
	case []float64:
		var out mgl64.Vec3
		for i := 0; i < len(v) && i < 3; i++ {
			out[i] = v[i]
		}
		return out
	case []any:
		var out mgl64.Vec3
		for i := 0; i < len(v) && i < 3; i++ {
			if f, ok := v[i].(float64); ok {
				out[i] = f
			}
		}
		return out
	case map[string]any:
		var out mgl64.Vec3
		if x, ok := v["x"].(float64); ok {
			out[0] = x
		}
		if y, ok := v["y"].(float64); ok {
			out[1] = y
		}
		if z, ok := v["z"].(float64); ok {
			out[2] = z
		}
		return out
	default:
		return mgl64.Vec3{}
	}
}
