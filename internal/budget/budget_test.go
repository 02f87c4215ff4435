package budget

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	zero := 0
	cfg := Config{MaxTurns: &zero}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero max turns")
	}

	bad := "batched"
	cfg = Config{TurnGranularity: &bad}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown granularity")
	}

	turns := 5
	granularity := GranularityCombined
	cfg = Config{MaxTurns: &turns, TurnGranularity: &granularity}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMergeClone(t *testing.T) {
	turns := 5
	base := Config{MaxTurns: &turns}
	steps := 3
	override := Config{MaxStepsPerTurn: &steps}

	merged := Merge(base, override)
	if merged.MaxTurns == nil || *merged.MaxTurns != turns {
		t.Fatalf("expected max turns to persist")
	}
	if merged.MaxStepsPerTurn == nil || *merged.MaxStepsPerTurn != steps {
		t.Fatalf("expected steps override")
	}

	// ensure clone
	*merged.MaxTurns = 99
	if *base.MaxTurns != 5 {
		t.Fatalf("merge should not alias base fields")
	}
}

func TestResolveFillsDefaults(t *testing.T) {
	turns := 10
	limits := Config{MaxTurns: &turns}.Resolve()
	if limits.MaxTurns != 10 {
		t.Fatalf("expected overridden max turns, got %d", limits.MaxTurns)
	}
	def := Defaults()
	if limits.MaxStepsPerTurn != def.MaxStepsPerTurn {
		t.Fatalf("expected default steps, got %d", limits.MaxStepsPerTurn)
	}
	if limits.RetryBackoff != def.RetryBackoff {
		t.Fatalf("expected default backoff, got %v", limits.RetryBackoff)
	}
	if limits.TurnGranularity != GranularitySingle {
		t.Fatalf("expected single granularity, got %s", limits.TurnGranularity)
	}
}

func TestFromValuesSkipsZero(t *testing.T) {
	cfg := FromValues(0, 4, 0, 0, 0, "")
	if cfg.MaxTurns != nil {
		t.Fatalf("zero max turns should stay unset")
	}
	if cfg.MaxStepsPerTurn == nil || *cfg.MaxStepsPerTurn != 4 {
		t.Fatalf("expected steps to be set")
	}
	if !FromValues(0, 0, 0, 0, 0, "").IsZero() {
		t.Fatalf("expected zero config")
	}
	limits := cfg.Resolve()
	if limits.MaxTurns != Defaults().MaxTurns {
		t.Fatalf("expected default turns")
	}
	if limits.RetryBackoff != 5*time.Second {
		t.Fatalf("expected default backoff")
	}
}
