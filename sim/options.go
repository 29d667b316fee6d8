package sim

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kaelberg/chronosim/sim/emit"
)

// Option configures an Orchestrator at construction time. Functional
// options keep New's signature stable as configuration grows: callers only
// specify what they need to override.
//
// Example:
//
//	orch, err := sim.New(log, checkpoints,
//	    sim.WithTimeScale(2.0),
//	    sim.WithCheckpointInterval(500),
//	    sim.WithEmitter(emit.NewLogEmitter(os.Stdout, true)),
//	)
type Option func(*orchestratorConfig) error

// orchestratorConfig collects options before they are applied to an
// Orchestrator.
type orchestratorConfig struct {
	timeScale          float64
	checkpointInterval float64
	failFastHandlers   bool
	emitter            emit.Emitter
	registry           prometheus.Registerer
	gridCellSize       float64
}

func defaultOrchestratorConfig() *orchestratorConfig {
	return &orchestratorConfig{
		timeScale:          1.0,
		checkpointInterval: 1000,
		emitter:            emit.NewNullEmitter(),
		gridCellSize:       50.0,
	}
}

// WithTimeScale sets the simulation's initial time scale (simulation
// seconds elapsed per real second). Default: 1.0. Must be positive.
func WithTimeScale(scale float64) Option {
	return func(c *orchestratorConfig) error {
		if scale <= 0 {
			return newError(CodeInvalidTimeScale, "WithTimeScale", errPositiveScale)
		}
		c.timeScale = scale
		return nil
	}
}

// WithCheckpointInterval sets how often (in simulation seconds) a snapshot
// of WorldState is written after an event is applied. Default: 1000.
func WithCheckpointInterval(interval float64) Option {
	return func(c *orchestratorConfig) error {
		c.checkpointInterval = interval
		return nil
	}
}

// WithFailFastHandlers makes Dispatch abort on the first handler error
// instead of running every handler and aggregating failures. Default: false.
func WithFailFastHandlers(enabled bool) Option {
	return func(c *orchestratorConfig) error {
		c.failFastHandlers = enabled
		return nil
	}
}

// WithEmitter plugs an ambient observability sink (emit.LogEmitter,
// emit.OTelEmitter, emit.BufferedEmitter, ...). Default: emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(c *orchestratorConfig) error {
		c.emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection against registry. A
// nil registry uses prometheus.DefaultRegisterer.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	orch, _ := sim.New(log, checkpoints, sim.WithMetrics(registry))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(registry prometheus.Registerer) Option {
	return func(c *orchestratorConfig) error {
		c.registry = registry
		return nil
	}
}

// WithGridCellSize tunes the spatial index's uniform grid cell size.
// Default: 50.0 world units, suitable when entities are spaced on that
// order; set larger for sparse worlds, smaller for dense ones.
func WithGridCellSize(size float64) Option {
	return func(c *orchestratorConfig) error {
		if size <= 0 {
			return newError(CodeSimulationState, "WithGridCellSize", errPositiveScale)
		}
		c.gridCellSize = size
		return nil
	}
}

// defaultShutdownTimeout bounds the context Shutdown runs under.
const defaultShutdownTimeout = 10 * time.Second
