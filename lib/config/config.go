// Package config loads scheduler settings from a YAML file, environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pthm/hxhydrate"
	"github.com/pthm/hxhydrate/lib/logging"
)

// Defaults mirror hxhydrate.DefaultOptions.
const (
	DefaultReservedPrefix      = "fluent-"
	DefaultMaxConcurrent       = 6
	DefaultBatchSize           = 5
	DefaultRetryBaseDelay      = time.Second
	DefaultDiscoveryDelay      = 100 * time.Millisecond
	DefaultNetworkPollInterval = 5 * time.Second
	DefaultLazyFallbackDelay   = 100 * time.Millisecond
	DefaultStrategy            = "viewport"
	DefaultWatchMutations      = true

	DefaultLogLevel         = "info"
	DefaultMetricsAddr      = ":9464"
	DefaultMetricsNamespace = "hxhydrate"
)

// Config is the complete settings tree.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// SchedulerConfig maps onto hxhydrate.Options.
type SchedulerConfig struct {
	ReservedPrefix      string        `mapstructure:"reserved_prefix"`
	MaxConcurrent       int           `mapstructure:"max_concurrent"`
	BatchSize           int           `mapstructure:"batch_size"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
	DiscoveryDelay      time.Duration `mapstructure:"discovery_delay"`
	NetworkPollInterval time.Duration `mapstructure:"network_poll_interval"`
	LazyFallbackDelay   time.Duration `mapstructure:"lazy_fallback_delay"`
	ConditionRecheck    time.Duration `mapstructure:"condition_recheck"`
	DefaultStrategy     string        `mapstructure:"default_strategy"`
	WatchMutations      bool          `mapstructure:"watch_mutations"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SnapshotConfig holds the snapshot signing key.
type SnapshotConfig struct {
	Key       string `mapstructure:"key"`
	Sensitive bool   `mapstructure:"sensitive"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	var errs []error
	s := c.Scheduler
	if s.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_concurrent must be positive, got %d", s.MaxConcurrent))
	}
	if s.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.batch_size must be positive, got %d", s.BatchSize))
	}
	if s.RetryBaseDelay < 0 || s.DiscoveryDelay < 0 || s.NetworkPollInterval < 0 ||
		s.LazyFallbackDelay < 0 || s.ConditionRecheck < 0 {
		errs = append(errs, errors.New("scheduler durations must not be negative"))
	}
	if _, err := hxhydrate.ParseStrategy(s.DefaultStrategy); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.default_strategy: %w", err))
	}
	return errors.Join(errs...)
}

// Options converts the scheduler section into manager options.
func (c *Config) Options(log logging.Logger) hxhydrate.Options {
	s := c.Scheduler
	strategy, _ := hxhydrate.ParseStrategy(s.DefaultStrategy)
	return hxhydrate.Options{
		ReservedPrefix:       s.ReservedPrefix,
		MaxConcurrent:        s.MaxConcurrent,
		BatchSize:            s.BatchSize,
		RetryBaseDelay:       s.RetryBaseDelay,
		DiscoveryDelay:       s.DiscoveryDelay,
		NetworkPollInterval:  s.NetworkPollInterval,
		LazyFallbackDelay:    s.LazyFallbackDelay,
		ConditionRecheck:     s.ConditionRecheck,
		DefaultStrategy:      strategy,
		DisableMutationWatch: !s.WatchMutations,
		Logger:               log,
	}
}
