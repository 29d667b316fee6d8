package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ClockState is the lifecycle state of a Clock.
type ClockState string

const (
	ClockStopped ClockState = "stopped"
	ClockRunning ClockState = "running"
	ClockPaused  ClockState = "paused"
)

const clockTickRate = 60 // Hz, matches the movement system's target frame rate.

// Clock advances simulation time at a configurable scale while running. All
// state transitions are serialized behind mu, so concurrent callers observe
// atomic start/pause/resume/stop/seek operations even though the tick loop
// itself runs on its own goroutine.
type Clock struct {
	mu sync.Mutex

	currentTime float64
	timeScale   float64
	state       ClockState
	lastTick    time.Time

	limiter *rate.Limiter
	cancel  context.CancelFunc
	group   *errgroup.Group
	onTick  func()
}

// NewClock returns a Clock in the Stopped state with a 1.0 time scale.
func NewClock() *Clock {
	return &Clock{
		timeScale: 1.0,
		state:     ClockStopped,
		limiter:   rate.NewLimiter(rate.Every(time.Second/clockTickRate), 1),
	}
}

// Start transitions the clock to Running and launches its tick goroutine.
// Starting an already-running clock is a no-op; starting a paused clock
// resumes it without resetting CurrentTime.
func (c *Clock) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ClockRunning {
		return nil
	}
	c.state = ClockRunning
	c.lastTick = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	g, runCtx := errgroup.WithContext(runCtx)
	c.cancel = cancel
	c.group = g
	g.Go(func() error { return c.tickLoop(runCtx) })
	return nil
}

// Stop transitions the clock to Stopped and halts the tick goroutine.
// CurrentTime is preserved; a subsequent Start begins from where Stop left
// off unless the caller issues a Seek first.
func (c *Clock) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	g := c.group
	c.state = ClockStopped
	c.cancel = nil
	c.group = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if g != nil {
		_ = g.Wait()
	}
	return nil
}

// Pause halts time advancement without tearing down the tick goroutine's
// bookkeeping; CurrentTime freezes exactly where it was.
func (c *Clock) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClockRunning {
		return newError(CodeSimulationState, "Pause", fmt.Errorf("clock is %s, not running", c.state))
	}
	c.state = ClockPaused
	return nil
}

// Resume transitions a Paused clock back to Running, re-anchoring the
// wall-clock reference so the pause duration is not counted as elapsed
// simulation time.
func (c *Clock) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClockPaused {
		return newError(CodeSimulationState, "Resume", fmt.Errorf("clock is %s, not paused", c.state))
	}
	c.state = ClockRunning
	c.lastTick = time.Now()
	return nil
}

// Seek jumps CurrentTime directly to target, regardless of lifecycle state.
// It does not itself replay events; callers (the Orchestrator) are
// responsible for reconciling WorldState before or after calling Seek.
func (c *Clock) Seek(target float64) error {
	if target < 0 {
		return newError(CodeTimeSeek, "Seek", fmt.Errorf("target time %f is negative", target))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = target
	c.lastTick = time.Now()
	return nil
}

// SetTimeScale changes how many simulation seconds elapse per real second.
// scale must be strictly positive.
func (c *Clock) SetTimeScale(scale float64) error {
	if scale <= 0 {
		return newError(CodeInvalidTimeScale, "SetTimeScale", fmt.Errorf("time scale %f must be positive", scale))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeScale = scale
	return nil
}

// Time returns the current simulation time.
func (c *Clock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// TimeScale returns the current time scale.
func (c *Clock) TimeScale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeScale
}

// State returns the current lifecycle state.
func (c *Clock) State() ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetTickCallback installs a function invoked once per tick loop iteration
// that actually advances CurrentTime, after the lock guarding that
// advancement is released. A nil callback disables the hook.
func (c *Clock) SetTickCallback(onTick func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = onTick
}

// tickLoop advances CurrentTime while the clock is Running, paced at
// clockTickRate by a rate.Limiter. dt is computed from actual wall-clock
// elapsed time, independent of the limiter's own pacing, so a delayed tick
// still advances simulation time by the correct amount.
func (c *Clock) tickLoop(ctx context.Context) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}

		c.mu.Lock()
		if c.state == ClockStopped {
			c.mu.Unlock()
			return nil
		}
		now := time.Now()
		advanced := c.state == ClockRunning
		if advanced {
			dtReal := now.Sub(c.lastTick).Seconds()
			c.currentTime += dtReal * c.timeScale
		}
		c.lastTick = now
		onTick := c.onTick
		c.mu.Unlock()

		if advanced && onTick != nil {
			onTick()
		}
	}
}

// FormatTime renders seconds as "HH:MM:SS", or "Nd HH:MM:SS" once a full
// day has elapsed.
func FormatTime(seconds float64) string {
	total := int64(seconds)
	days := total / 86400
	rem := total % 86400
	h := rem / 3600
	m := (rem % 3600) / 60
	s := rem % 60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
