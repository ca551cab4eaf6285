package breaker

import (
	"fmt"
	"time"
)

const (
	DefaultFailureThreshold         = 5
	DefaultSuccessThreshold         = 3
	DefaultTimeout                  = 10 * time.Second
	DefaultHalfOpenProbeLimit       = 3
	DefaultVolumeThreshold          = 20
	DefaultErrorPercentageThreshold = 50.0
	DefaultSleepWindow              = 60 * time.Second

	// Bounds the self-healer never crosses.
	minBusinessFailureThreshold  = 3
	maxOffHoursFailureThreshold  = 10
	minEmergencyFailureThreshold = 2
	minBusinessErrorPercentage   = 30.0
	maxOffHoursErrorPercentage   = 70.0
	minSleepWindow               = 10 * time.Second
	maxSleepWindow               = 300 * time.Second
	maxTimeout                   = 60 * time.Second
	minHalfOpenProbeLimit        = 1
)

// Config holds the tunables of one circuit.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens a
	// closed circuit while its call volume is below VolumeThreshold.
	FailureThreshold uint `json:"failure_threshold"`

	// SuccessThreshold is the number of consecutive successes that closes a
	// half-open circuit.
	SuccessThreshold uint `json:"success_threshold"`

	// Timeout is the longest a guarded call may run before it is recorded
	// as a failure.
	Timeout time.Duration `json:"timeout"`

	// HalfOpenProbeLimit caps concurrent calls admitted while half-open.
	HalfOpenProbeLimit uint `json:"half_open_probe_limit"`

	// VolumeThreshold is the number of calls after which the circuit trips
	// on ErrorPercentageThreshold instead of FailureThreshold.
	VolumeThreshold uint `json:"volume_threshold"`

	// ErrorPercentageThreshold is the failure percentage, in [0, 100], that
	// opens a closed circuit once VolumeThreshold calls were made.
	ErrorPercentageThreshold float64 `json:"error_percentage_threshold"`

	// SleepWindow is the minimum time an open circuit waits before a probe
	// is allowed.
	SleepWindow time.Duration `json:"sleep_window"`

	// AdaptiveScalingEnabled lets the maintenance loop retune this circuit.
	AdaptiveScalingEnabled bool `json:"adaptive_scaling_enabled"`

	// ProbabilisticModeEnabled allows the circuit to enter partial admission.
	ProbabilisticModeEnabled bool `json:"probabilistic_mode_enabled"`

	// PatternLearningEnabled turns on failure pattern detection.
	PatternLearningEnabled bool `json:"pattern_learning_enabled"`
}

// DefaultConfig returns the package defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:         DefaultFailureThreshold,
		SuccessThreshold:         DefaultSuccessThreshold,
		Timeout:                  DefaultTimeout,
		HalfOpenProbeLimit:       DefaultHalfOpenProbeLimit,
		VolumeThreshold:          DefaultVolumeThreshold,
		ErrorPercentageThreshold: DefaultErrorPercentageThreshold,
		SleepWindow:              DefaultSleepWindow,
		AdaptiveScalingEnabled:   true,
		ProbabilisticModeEnabled: false,
		PatternLearningEnabled:   true,
	}
}

// Validate reports configuration values no circuit can run with.
func (c Config) Validate() error {
	switch {
	case c.FailureThreshold == 0:
		return fmt.Errorf("%w: failure threshold must be positive", ErrInvalidConfig)
	case c.SuccessThreshold == 0:
		return fmt.Errorf("%w: success threshold must be positive", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	case c.HalfOpenProbeLimit == 0:
		return fmt.Errorf("%w: half-open probe limit must be positive", ErrInvalidConfig)
	case c.ErrorPercentageThreshold < 0 || c.ErrorPercentageThreshold > 100:
		return fmt.Errorf("%w: error percentage threshold must be within [0, 100], got %g",
			ErrInvalidConfig, c.ErrorPercentageThreshold)
	case c.SleepWindow <= 0:
		return fmt.Errorf("%w: sleep window must be positive, got %s", ErrInvalidConfig, c.SleepWindow)
	}

	return nil
}

// normalized fills unset numeric fields from DefaultConfig and clamps the
// error percentage, so a circuit always runs with a valid config.
func (c Config) normalized() Config {
	d := DefaultConfig()

	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}

	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}

	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}

	if c.HalfOpenProbeLimit == 0 {
		c.HalfOpenProbeLimit = d.HalfOpenProbeLimit
	}

	if c.SleepWindow <= 0 {
		c.SleepWindow = d.SleepWindow
	}

	c.ErrorPercentageThreshold = min(max(c.ErrorPercentageThreshold, 0), 100)

	return c
}

// ConfigOverride adjusts a circuit config at creation time.
type ConfigOverride func(*Config)

func WithFailureThreshold(n uint) ConfigOverride {
	return func(c *Config) { c.FailureThreshold = n }
}

func WithSuccessThreshold(n uint) ConfigOverride {
	return func(c *Config) { c.SuccessThreshold = n }
}

func WithTimeout(d time.Duration) ConfigOverride {
	return func(c *Config) { c.Timeout = d }
}

func WithHalfOpenProbeLimit(n uint) ConfigOverride {
	return func(c *Config) { c.HalfOpenProbeLimit = n }
}

func WithVolumeThreshold(n uint) ConfigOverride {
	return func(c *Config) { c.VolumeThreshold = n }
}

func WithErrorPercentageThreshold(pct float64) ConfigOverride {
	return func(c *Config) { c.ErrorPercentageThreshold = pct }
}

func WithSleepWindow(d time.Duration) ConfigOverride {
	return func(c *Config) { c.SleepWindow = d }
}

func WithAdaptiveScaling(enabled bool) ConfigOverride {
	return func(c *Config) { c.AdaptiveScalingEnabled = enabled }
}

func WithProbabilisticMode(enabled bool) ConfigOverride {
	return func(c *Config) { c.ProbabilisticModeEnabled = enabled }
}

func WithPatternLearning(enabled bool) ConfigOverride {
	return func(c *Config) { c.PatternLearningEnabled = enabled }
}
