package budget

import (
	"fmt"
	"time"
)

// Turn granularity modes. Single-step planners issue one atomic instruction
// per turn; combined planners may fold several related steps into one.
const (
	GranularitySingle   = "single"
	GranularityCombined = "combined"
)

// Config defines loop guardrails for a task run. Nil fields mean "use the
// default"; Merge overlays explicit values onto a base.
type Config struct {
	MaxTurns        *int
	MaxStepsPerTurn *int
	HistoryWindow   *int
	TaskAttempts    *int
	RetryBackoff    *time.Duration
	TurnGranularity *string
}

// Limits is a fully resolved budget with no optional fields left.
type Limits struct {
	MaxTurns        int
	MaxStepsPerTurn int
	HistoryWindow   int
	TaskAttempts    int
	RetryBackoff    time.Duration
	TurnGranularity string
}

// Defaults returns the stock limits observed to converge on benchmark tasks.
func Defaults() Limits {
	return Limits{
		MaxTurns:        7,
		MaxStepsPerTurn: 2,
		HistoryWindow:   4,
		TaskAttempts:    3,
		RetryBackoff:    5 * time.Second,
		TurnGranularity: GranularitySingle,
	}
}

// Validate ensures the budget values are sane before use.
func (c Config) Validate() error {
	if c.MaxTurns != nil && *c.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be > 0")
	}
	if c.MaxStepsPerTurn != nil && *c.MaxStepsPerTurn <= 0 {
		return fmt.Errorf("max_steps_per_turn must be > 0")
	}
	if c.HistoryWindow != nil && *c.HistoryWindow < 0 {
		return fmt.Errorf("history_window cannot be negative")
	}
	if c.TaskAttempts != nil && *c.TaskAttempts <= 0 {
		return fmt.Errorf("task_attempts must be > 0")
	}
	if c.RetryBackoff != nil && *c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff cannot be negative")
	}
	if c.TurnGranularity != nil {
		switch *c.TurnGranularity {
		case GranularitySingle, GranularityCombined:
		default:
			return fmt.Errorf("turn_granularity must be %q or %q", GranularitySingle, GranularityCombined)
		}
	}
	return nil
}

// Clone produces a deep copy of the config.
func (c Config) Clone() Config {
	clone := Config{}
	if c.MaxTurns != nil {
		v := *c.MaxTurns
		clone.MaxTurns = &v
	}
	if c.MaxStepsPerTurn != nil {
		v := *c.MaxStepsPerTurn
		clone.MaxStepsPerTurn = &v
	}
	if c.HistoryWindow != nil {
		v := *c.HistoryWindow
		clone.HistoryWindow = &v
	}
	if c.TaskAttempts != nil {
		v := *c.TaskAttempts
		clone.TaskAttempts = &v
	}
	if c.RetryBackoff != nil {
		v := *c.RetryBackoff
		clone.RetryBackoff = &v
	}
	if c.TurnGranularity != nil {
		v := *c.TurnGranularity
		clone.TurnGranularity = &v
	}
	return clone
}

// Merge overlays non-nil values from override onto base.
func Merge(base Config, override Config) Config {
	result := base.Clone()
	if override.MaxTurns != nil {
		v := *override.MaxTurns
		result.MaxTurns = &v
	}
	if override.MaxStepsPerTurn != nil {
		v := *override.MaxStepsPerTurn
		result.MaxStepsPerTurn = &v
	}
	if override.HistoryWindow != nil {
		v := *override.HistoryWindow
		result.HistoryWindow = &v
	}
	if override.TaskAttempts != nil {
		v := *override.TaskAttempts
		result.TaskAttempts = &v
	}
	if override.RetryBackoff != nil {
		v := *override.RetryBackoff
		result.RetryBackoff = &v
	}
	if override.TurnGranularity != nil {
		v := *override.TurnGranularity
		result.TurnGranularity = &v
	}
	return result
}

// IsZero reports whether the config overrides nothing.
func (c Config) IsZero() bool {
	return c.MaxTurns == nil && c.MaxStepsPerTurn == nil && c.HistoryWindow == nil &&
		c.TaskAttempts == nil && c.RetryBackoff == nil && c.TurnGranularity == nil
}

// Resolve fills every unset field from the defaults and returns hard limits.
func (c Config) Resolve() Limits {
	limits := Defaults()
	if c.MaxTurns != nil {
		limits.MaxTurns = *c.MaxTurns
	}
	if c.MaxStepsPerTurn != nil {
		limits.MaxStepsPerTurn = *c.MaxStepsPerTurn
	}
	if c.HistoryWindow != nil {
		limits.HistoryWindow = *c.HistoryWindow
	}
	if c.TaskAttempts != nil {
		limits.TaskAttempts = *c.TaskAttempts
	}
	if c.RetryBackoff != nil {
		limits.RetryBackoff = *c.RetryBackoff
	}
	if c.TurnGranularity != nil {
		limits.TurnGranularity = *c.TurnGranularity
	}
	return limits
}

// FromValues builds a Config from already-resolved settings, treating zero
// values as unset so config files can omit fields.
func FromValues(maxTurns, maxSteps, historyWindow, taskAttempts int, retryBackoff time.Duration, granularity string) Config {
	cfg := Config{}
	if maxTurns > 0 {
		cfg.MaxTurns = &maxTurns
	}
	if maxSteps > 0 {
		cfg.MaxStepsPerTurn = &maxSteps
	}
	if historyWindow > 0 {
		cfg.HistoryWindow = &historyWindow
	}
	if taskAttempts > 0 {
		cfg.TaskAttempts = &taskAttempts
	}
	if retryBackoff > 0 {
		cfg.RetryBackoff = &retryBackoff
	}
	if granularity != "" {
		cfg.TurnGranularity = &granularity
	}
	return cfg
}
