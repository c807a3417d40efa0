package hxhydrate

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects the trigger that moves a component from passive to
// interactive.
type Strategy string

const (
	// StrategyImmediate activates as soon as the request is accepted.
	StrategyImmediate Strategy = "immediate"
	// StrategyLazy waits for an idle callback with enough slack.
	StrategyLazy Strategy = "lazy"
	// StrategyViewport activates each element when it becomes visible.
	StrategyViewport Strategy = "viewport"
	// StrategyInteraction activates each element on its first user interaction.
	StrategyInteraction Strategy = "interaction"
	// StrategyMediaQuery waits until Conditions.MediaQuery matches.
	StrategyMediaQuery Strategy = "media-query"
	// StrategyNetwork polls until the network class equals Conditions.NetworkType.
	StrategyNetwork Strategy = "network"
	// StrategyCPU waits for an idle period with more than 10ms of slack.
	StrategyCPU Strategy = "cpu"
	// StrategyCustom is an extension point and always fails.
	StrategyCustom Strategy = "custom"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyImmediate, StrategyLazy, StrategyViewport, StrategyInteraction,
		StrategyMediaQuery, StrategyNetwork, StrategyCPU, StrategyCustom:
		return true
	}
	return false
}

// DefaultTimeout returns the timeout used when Config.Timeout is zero.
// Zero means the strategy never waits and has no timeout.
func (s Strategy) DefaultTimeout() time.Duration {
	switch s {
	case StrategyLazy, StrategyCPU:
		return 10 * time.Second
	case StrategyViewport, StrategyMediaQuery:
		return 30 * time.Second
	case StrategyInteraction, StrategyNetwork:
		return 60 * time.Second
	default:
		return 0
	}
}

// Priority orders batched activations.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// rank returns the batch position of p; unknown priorities sort as normal.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return p, nil
	}
	return "", fmt.Errorf("%w: priority %q", ErrInvalidConfig, s)
}

// ParseStrategy parses a strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	return st, nil
}

// Conditions gate whether a strategy may run at all. Zero-valued clauses
// are not checked; clauses whose environment signal is unavailable are
// skipped.
type Conditions struct {
	MediaQuery      string
	NetworkType     string
	MinDeviceMemory float64 // gigabytes
	MinBatteryLevel float64 // 0..1
	SaveData        *bool
	ReducedMotion   *bool
}

// Performance holds per-request tuning knobs.
type Performance struct {
	// Budget logs a warning when a single element activation takes longer.
	Budget time.Duration
	// MinIdleSlack is the idle time the lazy strategy needs before it
	// activates. Defaults to 1ms.
	MinIdleSlack time.Duration
}

// Config describes one activation request. Only Strategy is required.
type Config struct {
	Strategy Strategy
	Priority Priority
	// Components optionally scopes activation to elements of the tag that
	// match at least one of these selectors.
	Components []string
	// Timeout bounds the whole activation, retries included. Zero selects
	// Strategy.DefaultTimeout. A timed out activation fails with KindTimeout
	// and is never retried.
	Timeout time.Duration
	// Retries is the retry limit. Zero selects the default of 3; a
	// negative value disables retries.
	Retries     int
	Conditions  *Conditions
	Performance *Performance
	// Analytics reports the terminal outcome to Options.Analytics.
	Analytics bool
}

const defaultRetries = 3

// withDefaults returns a copy of c with defaults applied.
func (c Config) withDefaults() Config {
	if c.Priority == "" {
		c.Priority = PriorityNormal
	}
	if c.Timeout == 0 {
		c.Timeout = c.Strategy.DefaultTimeout()
	}
	switch {
	case c.Retries == 0:
		c.Retries = defaultRetries
	case c.Retries < 0:
		c.Retries = 0
	}
	return c
}

// validate checks the fields that cannot be defaulted.
func (c Config) validate() error {
	if c.Strategy == "" {
		return fmt.Errorf("%w: strategy is required", ErrInvalidConfig)
	}
	if !c.Strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Strategy)
	}
	if c.Strategy == StrategyMediaQuery && (c.Conditions == nil || c.Conditions.MediaQuery == "") {
		return fmt.Errorf("%w: media-query strategy needs Conditions.MediaQuery", ErrInvalidConfig)
	}
	if c.Strategy == StrategyNetwork && (c.Conditions == nil || c.Conditions.NetworkType == "") {
		return fmt.Errorf("%w: network strategy needs Conditions.NetworkType", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

func (c Config) minIdleSlack() time.Duration {
	if c.Performance != nil && c.Performance.MinIdleSlack > 0 {
		return c.Performance.MinIdleSlack
	}
	return time.Millisecond
}

// Request pairs a tag with its configuration for batch submission.
type Request struct {
	Tag    string
	Config Config
}
