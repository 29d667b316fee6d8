package sim

import (
	"context"
	"testing"
	"time"
)

func TestClockStartRunsAndAdvancesTime(t *testing.T) {
	c := NewClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != ClockRunning {
		t.Fatalf("State after Start = %v, want running", c.State())
	}

	time.Sleep(80 * time.Millisecond)
	if got := c.Time(); got <= 0 {
		t.Fatalf("Time after running = %v, want > 0", got)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != ClockStopped {
		t.Fatalf("State after Stop = %v, want stopped", c.State())
	}
}

func TestClockPauseFreezesTime(t *testing.T) {
	c := NewClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	frozen := c.Time()
	time.Sleep(40 * time.Millisecond)
	if got := c.Time(); got != frozen {
		t.Fatalf("Time changed while paused: %v -> %v", frozen, got)
	}
	_ = c.Stop()
}

func TestClockPauseWhenNotRunningFails(t *testing.T) {
	c := NewClock()
	if err := c.Pause(); err == nil {
		t.Fatalf("Pause on a stopped clock should fail")
	}
}

func TestClockResumeWhenNotPausedFails(t *testing.T) {
	c := NewClock()
	if err := c.Resume(); err == nil {
		t.Fatalf("Resume on a non-paused clock should fail")
	}
}

func TestClockSeekRejectsNegative(t *testing.T) {
	c := NewClock()
	if err := c.Seek(-1); err == nil {
		t.Fatalf("Seek(-1) should fail")
	}
	if err := c.Seek(500); err != nil {
		t.Fatalf("Seek(500): %v", err)
	}
	if got := c.Time(); got != 500 {
		t.Fatalf("Time after Seek(500) = %v, want 500", got)
	}
}

func TestClockSetTimeScaleRejectsNonPositive(t *testing.T) {
	c := NewClock()
	if err := c.SetTimeScale(0); err == nil {
		t.Fatalf("SetTimeScale(0) should fail")
	}
	if err := c.SetTimeScale(-1); err == nil {
		t.Fatalf("SetTimeScale(-1) should fail")
	}
	if err := c.SetTimeScale(4); err != nil {
		t.Fatalf("SetTimeScale(4): %v", err)
	}
	if got := c.TimeScale(); got != 4 {
		t.Fatalf("TimeScale = %v, want 4", got)
	}
}

func TestFormatTime(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{61, "00:01:01"},
		{3661, "01:01:01"},
		{90000, "1d 01:00:00"},
	}
	for _, c := range cases {
		if got := FormatTime(c.seconds); got != c.want {
			t.Errorf("FormatTime(%v) = %q, want %q", c.seconds, got, c.want)
		}
	}
}
