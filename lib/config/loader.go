package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".hxhydrate"

const configType = "yaml"

// envPrefix is the environment variable prefix, e.g.
// HXHYDRATE_SCHEDULER_MAX_CONCURRENT.
const envPrefix = "HXHYDRATE"

// Load reads configuration from file, env vars and defaults. If path is
// empty the file is searched in the working directory and $HOME; a
// missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.reserved_prefix", DefaultReservedPrefix)
	v.SetDefault("scheduler.max_concurrent", DefaultMaxConcurrent)
	v.SetDefault("scheduler.batch_size", DefaultBatchSize)
	v.SetDefault("scheduler.retry_base_delay", DefaultRetryBaseDelay)
	v.SetDefault("scheduler.discovery_delay", DefaultDiscoveryDelay)
	v.SetDefault("scheduler.network_poll_interval", DefaultNetworkPollInterval)
	v.SetDefault("scheduler.lazy_fallback_delay", DefaultLazyFallbackDelay)
	v.SetDefault("scheduler.condition_recheck", 0)
	v.SetDefault("scheduler.default_strategy", DefaultStrategy)
	v.SetDefault("scheduler.watch_mutations", DefaultWatchMutations)

	v.SetDefault("log.level", DefaultLogLevel)

	v.SetDefault("snapshot.key", "")
	v.SetDefault("snapshot.sensitive", false)

	v.SetDefault("metrics.addr", DefaultMetricsAddr)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
}
