package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kaelberg/chronosim/sim/emit"
	"github.com/kaelberg/chronosim/sim/spatial"
	"github.com/kaelberg/chronosim/sim/store"
)

// Status is a point-in-time summary of a running Orchestrator, the shape
// returned by GetStatus and suitable for exposing over an external
// interface without leaking internal locking.
type Status struct {
	SimulationID   string
	SimulationTime float64
	ClockState     ClockState
	TimeScale      float64
	EntityCount    int
	EventCount     int64
}

// Orchestrator is the single coordinator a caller drives a simulation
// through: it owns the clock, the reduced world state, the durable event
// log and checkpoint store, the spatial index, and the handler registry,
// and it is the only type in this module that imports both sim/store and
// sim/spatial.
type Orchestrator struct {
	id string

	mu    sync.RWMutex
	state *WorldState

	clock       *Clock
	eventLog    store.EventLog
	checkpoints store.CheckpointStore
	index       *spatial.Index
	movement    *spatial.MovementSystem
	handlers    *HandlerRegistry
	validator   *Validator
	metrics     *Metrics
	emitter     emit.Emitter
	cfg         *orchestratorConfig

	runMu     sync.Mutex
	runCancel context.CancelFunc
	runGroup  *errgroup.Group
}

// New constructs an Orchestrator around eventLog and checkpoints, applying
// opts. It opens eventLog but does not start the clock or movement loop;
// call Start for that.
func New(eventLog store.EventLog, checkpoints store.CheckpointStore, opts ...Option) (*Orchestrator, error) {
	cfg := defaultOrchestratorConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	o := &Orchestrator{
		id:          uuid.New().String(),
		state:       NewWorldState(),
		clock:       NewClock(),
		eventLog:    eventLog,
		checkpoints: checkpoints,
		index:       spatial.NewIndex(cfg.gridCellSize),
		handlers:    NewHandlerRegistry(cfg.failFastHandlers),
		validator:   NewValidator(),
		emitter:     cfg.emitter,
		cfg:         cfg,
	}
	if cfg.registry != nil {
		o.metrics = NewMetrics(cfg.registry)
	}
	if s, ok := checkpoints.(interface{ SetInterval(float64) }); ok {
		s.SetInterval(cfg.checkpointInterval)
	}
	if err := o.clock.SetTimeScale(cfg.timeScale); err != nil {
		return nil, err
	}
	o.clock.SetTickCallback(o.metrics.recordTick)
	o.movement = spatial.NewMovementSystem(o, o.clock, o.index)

	if err := eventLog.Open(context.Background()); err != nil {
		return nil, newError(CodeEventPersistence, "New", fmt.Errorf("open event log: %w", err))
	}
	return o, nil
}

// ID returns the simulation run's identifier, stamped into every emitted
// observability event.
func (o *Orchestrator) ID() string { return o.id }

// LiveMovingEntities implements spatial.EntitySource.
func (o *Orchestrator) LiveMovingEntities() []spatial.MovingEntity {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]spatial.MovingEntity, 0, len(o.state.Entities))
	for _, e := range o.state.Entities {
		if !e.Alive() {
			continue
		}
		out = append(out, spatial.MovingEntity{
			ID:             e.ID,
			Position:       e.Position,
			Velocity:       e.Velocity,
			LastUpdateTime: e.LastUpdateTime,
		})
	}
	return out
}

// EmitEntityMoved implements spatial.Commander, letting the movement
// system raise an entity.moved event without importing this package.
func (o *Orchestrator) EmitEntityMoved(ctx context.Context, entityID uuid.UUID, position, velocity mgl64.Vec3) error {
	data := map[string]any{
		"entity_id": entityID.String(),
		"position":  vec3Slice(position),
		"velocity":  vec3Slice(velocity),
	}
	_, err := o.Emit(ctx, KindEntityMoved, data, nil)
	return err
}

func vec3Slice(v mgl64.Vec3) [3]float64 { return [3]float64{v.X(), v.Y(), v.Z()} }

// Start transitions the clock to Running and launches the 60Hz movement
// loop, then emits simulation.started.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runMu.Lock()
	if o.runCancel != nil {
		o.runMu.Unlock()
		return nil
	}
	o.runMu.Unlock()

	if err := o.clock.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, runCtx := errgroup.WithContext(runCtx)
	o.runMu.Lock()
	if o.runCancel != nil {
		o.runMu.Unlock()
		cancel()
		return nil
	}
	o.runCancel = cancel
	o.runGroup = g
	o.runMu.Unlock()
	g.Go(func() error { return o.movement.Run(runCtx, o.onSlowFrame) })

	_, err := o.Emit(ctx, KindSimulationStarted, map[string]any{
		"simulation_id": o.id,
		"time_scale":    o.clock.TimeScale(),
	}, nil)
	return err
}

func (o *Orchestrator) onSlowFrame(d time.Duration) {
	o.emitter.Emit(emit.Event{
		SimID:     o.id,
		SimTime:   o.clock.Time(),
		Component: "movement_system",
		Msg:       "slow_frame",
		Meta:      map[string]interface{}{"duration_ms": d.Milliseconds()},
	})
}

// Pause freezes the clock without tearing down the movement loop.
func (o *Orchestrator) Pause(ctx context.Context) error {
	if err := o.clock.Pause(); err != nil {
		return err
	}
	_, err := o.Emit(ctx, KindSimulationPaused, map[string]any{
		"simulation_id": o.id,
		"paused_at":     o.clock.Time(),
	}, nil)
	return err
}

// Resume un-freezes a Paused clock.
func (o *Orchestrator) Resume(ctx context.Context) error {
	if err := o.clock.Resume(); err != nil {
		return err
	}
	_, err := o.Emit(ctx, KindSimulationResumed, map[string]any{"simulation_id": o.id}, nil)
	return err
}

// Stop halts the clock and movement loop. SimulationTime is preserved.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.runMu.Lock()
	cancel := o.runCancel
	g := o.runGroup
	o.runCancel = nil
	o.runGroup = nil
	o.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if g != nil {
		_ = g.Wait()
	}
	if err := o.clock.Stop(); err != nil {
		return err
	}

	_, err := o.Emit(ctx, KindSimulationStopped, map[string]any{"simulation_id": o.id}, nil)
	return err
}

// Shutdown stops the simulation and releases the event log's resources,
// bounded by defaultShutdownTimeout.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	if o.clock.State() != ClockStopped {
		if err := o.Stop(shutdownCtx); err != nil {
			return err
		}
	}
	if err := o.eventLog.Close(shutdownCtx); err != nil {
		return newError(CodeEventPersistence, "Shutdown", fmt.Errorf("close event log: %w", err))
	}
	return o.emitter.Flush(shutdownCtx)
}

// Emit validates, persists, reduces, and dispatches a new event, then
// checkpoints if the event's simulation time is zero or falls on a multiple
// of the configured checkpoint interval. Apart from Seek, which rebuilds
// WorldState by replay, it is the only path by which WorldState changes.
func (o *Orchestrator) Emit(ctx context.Context, kind EventKind, data, metadata map[string]any) (Event, error) {
	simTime := o.clock.Time()
	event := NewEvent(simTime, kind, data, metadata)

	if err := o.validator.Validate(event); err != nil {
		return Event{}, err
	}

	rec, err := toEventRecord(event)
	if err != nil {
		return Event{}, newError(CodeEventValidation, "Emit", err)
	}
	if err := o.eventLog.Append(ctx, rec); err != nil {
		return Event{}, newError(CodeEventPersistence, "Emit", err)
	}

	o.mu.Lock()
	Reduce(o.state, event)
	o.syncIndexLocked(event)
	snapshotTime := o.state.SimulationTime
	entityCount := o.aliveEntityCountLocked()
	o.mu.Unlock()

	o.metrics.recordEventAppended(kind)
	o.metrics.setEntityCount(entityCount)
	o.emitter.Emit(emit.Event{
		SimID:     o.id,
		SimTime:   snapshotTime,
		Component: "orchestrator",
		Msg:       string(kind),
		Meta:      map[string]interface{}{"event_id": event.ID.String()},
	})

	var reportErr error
	if dispatchErr := o.handlers.Dispatch(ctx, event); dispatchErr != nil {
		o.metrics.recordHandlerError(kind)
		o.emitter.Emit(emit.Event{
			SimID:     o.id,
			SimTime:   snapshotTime,
			Component: "orchestrator",
			Msg:       "handler_error",
			Meta:      map[string]interface{}{"event_id": event.ID.String(), "error": dispatchErr.Error()},
		})
		if o.cfg.failFastHandlers {
			reportErr = dispatchErr
		}
	}

	if o.checkpoints != nil && o.shouldCheckpoint(snapshotTime) {
		if err := o.createCheckpoint(ctx); err != nil && reportErr == nil {
			reportErr = err
		}
	}

	return event, reportErr
}

// syncIndexLocked keeps the spatial index consistent with an entity
// lifecycle event. Callers must hold o.mu.
func (o *Orchestrator) syncIndexLocked(event Event) {
	switch event.Kind {
	case KindEntityCreated, KindEntityMoved:
		id, ok := dataUUID(event.Data, "entity_id")
		if !ok {
			return
		}
		if e, ok := o.state.Entities[id]; ok {
			o.index.Update(id, e.Position)
		}
	case KindEntityDestroyed:
		id, ok := dataUUID(event.Data, "entity_id")
		if ok {
			o.index.Remove(id)
		}
	}
}

func (o *Orchestrator) aliveEntityCountLocked() int {
	n := 0
	for _, e := range o.state.Entities {
		if e.Alive() {
			n++
		}
	}
	return n
}

func (o *Orchestrator) shouldCheckpoint(t float64) bool {
	if fc, ok := o.checkpoints.(interface{ ShouldCheckpoint(float64) bool }); ok {
		return fc.ShouldCheckpoint(t)
	}
	interval := o.cfg.checkpointInterval
	if interval <= 0 {
		return false
	}
	return t == 0 || float64(int64(t/interval)) == t/interval
}

func (o *Orchestrator) createCheckpoint(ctx context.Context) error {
	o.mu.RLock()
	snapshot := o.state.Clone()
	o.mu.RUnlock()

	blob, err := json.Marshal(snapshot)
	if err != nil {
		return newError(CodeCheckpointCreation, "createCheckpoint", err)
	}
	id := store.CheckpointID(snapshot.SimulationTime)
	rec := store.CheckpointRecord{
		ID:             id,
		SimulationTime: snapshot.SimulationTime,
		StateBlob:      blob,
	}
	if err := o.checkpoints.Save(ctx, rec); err != nil {
		return newError(CodeCheckpointCreation, "createCheckpoint", err)
	}

	o.metrics.recordCheckpoint()
	o.emitter.Emit(emit.Event{
		SimID:     o.id,
		SimTime:   snapshot.SimulationTime,
		Component: "checkpoint_store",
		Msg:       "checkpoint_created",
		Meta:      map[string]interface{}{"checkpoint_id": id},
	})
	return nil
}

// Seek reconstructs WorldState at targetTime by restoring the nearest
// checkpoint at or before targetTime (or starting from an empty world if
// none exists) and replaying every event strictly after it up to and
// including targetTime. The clock's CurrentTime is set to targetTime
// regardless of how far the last recorded event falls short of it.
func (o *Orchestrator) Seek(ctx context.Context, targetTime float64) error {
	if targetTime < 0 {
		return newError(CodeTimeSeek, "Seek", fmt.Errorf("target time %f is negative", targetTime))
	}

	state := NewWorldState()
	lowerBound := 0.0
	haveCheckpoint := false

	if o.checkpoints != nil {
		rec, ok, err := o.checkpoints.NearestBefore(ctx, targetTime)
		if err != nil {
			return newError(CodeTimeSeek, "Seek", err)
		}
		if ok {
			restored, err := fromCheckpointRecord(rec)
			if err != nil {
				return newError(CodeCheckpointRestore, "Seek", err)
			}
			state = restored
			lowerBound = rec.SimulationTime
			haveCheckpoint = true
		}
	}

	from := lowerBound
	if haveCheckpoint {
		from += 1e-9 // exclude the event(s) already folded into the checkpoint
	}
	to := targetTime

	records, err := o.eventLog.Query(ctx, &from, &to, nil)
	if err != nil {
		return newError(CodeTimeSeek, "Seek", err)
	}
	for _, rec := range records {
		event, err := fromEventRecord(rec)
		if err != nil {
			return newError(CodeTimeSeek, "Seek", err)
		}
		Reduce(state, event)
	}
	state.SimulationTime = targetTime

	o.mu.Lock()
	o.state = state
	o.index.Clear()
	for id, e := range state.Entities {
		if e.Alive() {
			o.index.Insert(id, e.Position)
		}
	}
	o.mu.Unlock()

	return o.clock.Seek(targetTime)
}

// SetTimeScale changes how fast simulation time elapses and emits
// time.scaled recording the transition.
func (o *Orchestrator) SetTimeScale(ctx context.Context, scale float64) error {
	old := o.clock.TimeScale()
	if err := o.clock.SetTimeScale(scale); err != nil {
		return err
	}
	_, err := o.Emit(ctx, KindTimeScaled, map[string]any{"old_scale": old, "new_scale": scale}, nil)
	return err
}

// CreateMarker emits a marker.created event, a labeled point in simulation
// time with no effect on WorldState beyond advancing EventCount.
func (o *Orchestrator) CreateMarker(ctx context.Context, label string, metadata map[string]any) (Event, error) {
	return o.Emit(ctx, KindMarkerCreated, map[string]any{"label": label}, metadata)
}

// CreateEntity emits entity.created for a new entity at position and
// returns the resulting event. The entity's id is generated here.
func (o *Orchestrator) CreateEntity(ctx context.Context, entityType string, position mgl64.Vec3, maxSpeed float64, metadata map[string]any) (uuid.UUID, Event, error) {
	id := uuid.New()
	data := map[string]any{
		"entity_id":   id.String(),
		"entity_type": entityType,
		"position":    vec3Slice(position),
		"max_speed":   maxSpeed,
	}
	if metadata != nil {
		data["metadata"] = metadata
	}
	event, err := o.Emit(ctx, KindEntityCreated, data, nil)
	return id, event, err
}

// DestroyEntity emits entity.destroyed for entityID.
func (o *Orchestrator) DestroyEntity(ctx context.Context, entityID uuid.UUID) (Event, error) {
	return o.Emit(ctx, KindEntityDestroyed, map[string]any{"entity_id": entityID.String()}, nil)
}

// SetEntityVelocity computes entityID's current interpolated position and
// emits entity.moved carrying it alongside the new velocity; it never
// mutates WorldState directly.
func (o *Orchestrator) SetEntityVelocity(ctx context.Context, entityID uuid.UUID, velocity mgl64.Vec3) error {
	o.mu.RLock()
	e, ok := o.state.Entities[entityID]
	var moving spatial.MovingEntity
	if ok {
		moving = spatial.MovingEntity{ID: e.ID, Position: e.Position, Velocity: e.Velocity, LastUpdateTime: e.LastUpdateTime}
	}
	o.mu.RUnlock()

	if !ok || !e.Alive() {
		return newError(CodeSimulationState, "SetEntityVelocity", fmt.Errorf("entity %s not found or destroyed", entityID))
	}
	return o.movement.SetEntityVelocity(ctx, o, moving, velocity)
}

// QueryEntitiesInRadius returns the ids of every live entity within radius
// of center, using the spatial index rather than scanning WorldState.
func (o *Orchestrator) QueryEntitiesInRadius(center mgl64.Vec3, radius float64, includeZ bool) []uuid.UUID {
	start := time.Now()
	points := o.index.QueryRadius(center, radius, includeZ)
	o.metrics.recordSpatialQuery("radius", time.Since(start))

	ids := make([]uuid.UUID, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	return ids
}

// GetEntity returns a defensive copy of the entity with id, or false if
// absent.
func (o *Orchestrator) GetEntity(id uuid.UUID) (Entity, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.state.Entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// GetEntitiesByType returns defensive copies of every live entity of the
// given type; destroyed entities are no longer listed under their type.
func (o *Orchestrator) GetEntitiesByType(entityType string) []Entity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := o.state.EntityTypes[entityType]
	out := make([]Entity, 0, len(ids))
	for id := range ids {
		if e, ok := o.state.Entities[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// GetEntityPosition returns entityID's live, velocity-interpolated
// position as of the current simulation time.
func (o *Orchestrator) GetEntityPosition(id uuid.UUID) (mgl64.Vec3, bool) {
	o.mu.RLock()
	e, ok := o.state.Entities[id]
	o.mu.RUnlock()
	if !ok {
		return mgl64.Vec3{}, false
	}
	return spatial.Interpolate(e.Position, e.Velocity, e.LastUpdateTime, o.clock.Time()), true
}

// GetStatus summarizes the orchestrator's current lifecycle and world
// state.
func (o *Orchestrator) GetStatus() Status {
	o.mu.RLock()
	entityCount := o.aliveEntityCountLocked()
	eventCount := o.state.EventCount
	simTime := o.state.SimulationTime
	o.mu.RUnlock()

	return Status{
		SimulationID:   o.id,
		SimulationTime: simTime,
		ClockState:     o.clock.State(),
		TimeScale:      o.clock.TimeScale(),
		EntityCount:    entityCount,
		EventCount:     eventCount,
	}
}

// On subscribes h to events of exactly kind.
func (o *Orchestrator) On(kind EventKind, h Handler) { o.handlers.On(kind, h) }

// OnAny subscribes h to every event.
func (o *Orchestrator) OnAny(h Handler) { o.handlers.OnAny(h) }

func toEventRecord(e Event) (store.EventRecord, error) {
	data, err := e.DataJSON()
	if err != nil {
		return store.EventRecord{}, fmt.Errorf("encode event data: %w", err)
	}
	metadata, err := e.MetadataJSON()
	if err != nil {
		return store.EventRecord{}, fmt.Errorf("encode event metadata: %w", err)
	}
	return store.EventRecord{
		ID:             e.ID,
		SimulationTime: e.SimulationTime,
		Kind:           string(e.Kind),
		Data:           data,
		Metadata:       metadata,
		CausationID:    e.CausationID,
		CorrelationID:  e.CorrelationID,
		CreatedAt:      e.CreatedAt,
	}, nil
}

func fromEventRecord(rec store.EventRecord) (Event, error) {
	var data, metadata map[string]any
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return Event{}, fmt.Errorf("decode event data: %w", err)
		}
	}
	if len(rec.Metadata) > 0 {
		if err := json.Unmarshal(rec.Metadata, &metadata); err != nil {
			return Event{}, fmt.Errorf("decode event metadata: %w", err)
		}
	}
	return Event{
		ID:             rec.ID,
		SimulationTime: rec.SimulationTime,
		Kind:           EventKind(rec.Kind),
		Data:           data,
		Metadata:       metadata,
		CausationID:    rec.CausationID,
		CorrelationID:  rec.CorrelationID,
		CreatedAt:      rec.CreatedAt,
	}, nil
}

func fromCheckpointRecord(rec store.CheckpointRecord) (*WorldState, error) {
	state := NewWorldState()
	if err := json.Unmarshal(rec.StateBlob, state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", rec.ID, err)
	}
	if state.Entities == nil {
		state.Entities = make(map[uuid.UUID]*Entity)
	}
	if state.EntityTypes == nil {
		state.EntityTypes = make(map[string]map[uuid.UUID]struct{})
	}
	return state, nil
}
