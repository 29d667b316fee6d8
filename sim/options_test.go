package sim

import "testing"

func TestDefaultOrchestratorConfig(t *testing.T) {
	cfg := defaultOrchestratorConfig()
	if cfg.timeScale != 1.0 {
		t.Fatalf("default timeScale = %v, want 1.0", cfg.timeScale)
	}
	if cfg.checkpointInterval != 1000 {
		t.Fatalf("default checkpointInterval = %v, want 1000", cfg.checkpointInterval)
	}
	if cfg.gridCellSize != 50.0 {
		t.Fatalf("default gridCellSize = %v, want 50.0", cfg.gridCellSize)
	}
	if cfg.emitter == nil {
		t.Fatalf("default emitter should not be nil")
	}
}

func TestWithTimeScaleRejectsNonPositive(t *testing.T) {
	cfg := defaultOrchestratorConfig()
	if err := WithTimeScale(0)(cfg); err == nil {
		t.Fatalf("WithTimeScale(0) should fail")
	}
	if err := WithTimeScale(-5)(cfg); err == nil {
		t.Fatalf("WithTimeScale(-5) should fail")
	}
	if err := WithTimeScale(3.0)(cfg); err != nil {
		t.Fatalf("WithTimeScale(3.0): %v", err)
	}
	if cfg.timeScale != 3.0 {
		t.Fatalf("timeScale = %v, want 3.0", cfg.timeScale)
	}
}

func TestWithGridCellSizeRejectsNonPositive(t *testing.T) {
	cfg := defaultOrchestratorConfig()
	if err := WithGridCellSize(0)(cfg); err == nil {
		t.Fatalf("WithGridCellSize(0) should fail")
	}
	if err := WithGridCellSize(100)(cfg); err != nil {
		t.Fatalf("WithGridCellSize(100): %v", err)
	}
	if cfg.gridCellSize != 100 {
		t.Fatalf("gridCellSize = %v, want 100", cfg.gridCellSize)
	}
}

func TestWithFailFastHandlers(t *testing.T) {
	cfg := defaultOrchestratorConfig()
	_ = WithFailFastHandlers(true)(cfg)
	if !cfg.failFastHandlers {
		t.Fatalf("failFastHandlers should be true")
	}
}

func TestWithCheckpointInterval(t *testing.T) {
	cfg := defaultOrchestratorConfig()
	_ = WithCheckpointInterval(250)(cfg)
	if cfg.checkpointInterval != 250 {
		t.Fatalf("checkpointInterval = %v, want 250", cfg.checkpointInterval)
	}
}
