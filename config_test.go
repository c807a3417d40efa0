package hxhydrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyDefaults(t *testing.T) {
	tests := []struct {
		strategy Strategy
		timeout  time.Duration
	}{
		{StrategyImmediate, 0},
		{StrategyLazy, 10 * time.Second},
		{StrategyViewport, 30 * time.Second},
		{StrategyInteraction, 60 * time.Second},
		{StrategyMediaQuery, 30 * time.Second},
		{StrategyNetwork, 60 * time.Second},
		{StrategyCPU, 10 * time.Second},
		{StrategyCustom, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			assert.True(t, tt.strategy.Valid())
			assert.Equal(t, tt.timeout, tt.strategy.DefaultTimeout())
		})
	}
	assert.False(t, Strategy("eventually").Valid())
}

func TestParse(t *testing.T) {
	s, err := ParseStrategy(" Viewport ")
	require.NoError(t, err)
	assert.Equal(t, StrategyViewport, s)

	_, err = ParseStrategy("soon")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	p, err := ParsePriority("CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, p)

	_, err = ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityCritical.rank(), PriorityHigh.rank())
	assert.Less(t, PriorityHigh.rank(), PriorityNormal.rank())
	assert.Less(t, PriorityNormal.rank(), PriorityLow.rank())
	assert.Equal(t, PriorityNormal.rank(), Priority("").rank())
	assert.Equal(t, PriorityNormal.rank(), Priority("whatever").rank())
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Strategy: StrategyViewport}.withDefaults()
	assert.Equal(t, PriorityNormal, cfg.Priority)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)

	cfg = Config{Strategy: StrategyImmediate, Retries: -1, Timeout: time.Second, Priority: PriorityLow}.withDefaults()
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, PriorityLow, cfg.Priority)

	cfg = Config{Strategy: StrategyImmediate, Retries: 5}.withDefaults()
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"ok", Config{Strategy: StrategyLazy}, nil},
		{"missing strategy", Config{}, ErrInvalidConfig},
		{"unknown strategy", Config{Strategy: "later"}, ErrUnknownStrategy},
		{"media without query", Config{Strategy: StrategyMediaQuery}, ErrInvalidConfig},
		{"media with query", Config{Strategy: StrategyMediaQuery, Conditions: &Conditions{MediaQuery: "(min-width: 1px)"}}, nil},
		{"network without type", Config{Strategy: StrategyNetwork, Conditions: &Conditions{}}, ErrInvalidConfig},
		{"negative timeout", Config{Strategy: StrategyLazy, Timeout: -time.Second}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMinIdleSlack(t *testing.T) {
	assert.Equal(t, time.Millisecond, Config{}.minIdleSlack())
	assert.Equal(t, 5*time.Millisecond, Config{Performance: &Performance{MinIdleSlack: 5 * time.Millisecond}}.minIdleSlack())
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
	require.NoError(t, Options{}.Validate())

	bad := []Options{
		{MaxConcurrent: -1},
		{BatchSize: -2},
		{RetryBaseDelay: -time.Second},
		{ConditionRecheck: -time.Second},
		{DefaultStrategy: "whenever"},
	}
	for _, o := range bad {
		assert.Error(t, o.Validate(), "%+v", o)
	}

	filled := Options{}.withDefaults()
	assert.Equal(t, 6, filled.MaxConcurrent)
	assert.Equal(t, 5, filled.BatchSize)
	assert.Equal(t, "fluent-", filled.ReservedPrefix)
	assert.Equal(t, StrategyViewport, filled.DefaultStrategy)
	assert.NotNil(t, filled.Logger)
}
