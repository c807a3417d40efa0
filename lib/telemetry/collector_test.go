package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxhydrate"
)

type fakeSource struct {
	metrics   hxhydrate.Metrics
	states    map[string]hxhydrate.ComponentState
	durations []hxhydrate.DurationStat
	inflight  int
}

func (f *fakeSource) ID() string                                              { return "test-manager" }
func (f *fakeSource) GetMetrics() hxhydrate.Metrics                           { return f.metrics }
func (f *fakeSource) Durations() []hxhydrate.DurationStat                     { return f.durations }
func (f *fakeSource) InFlight() int                                           { return f.inflight }
func (f *fakeSource) GetComponentStates() map[string]hxhydrate.ComponentState { return f.states }

func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func value(m *dto.Metric) float64 {
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	return m.GetGauge().GetValue()
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestCollector(t *testing.T) {
	src := &fakeSource{
		metrics: hxhydrate.Metrics{
			TotalComponents:      4,
			HydratedComponents:   3,
			FailedComponents:     1,
			TotalHydrationTime:   300 * time.Millisecond,
			AverageHydrationTime: 100 * time.Millisecond,
			PerformanceScore:     87.5,
		},
		states: map[string]hxhydrate.ComponentState{
			"fluent-a": {Tag: "fluent-a", Status: hxhydrate.StatusHydrated},
			"fluent-b": {Tag: "fluent-b", Status: hxhydrate.StatusHydrated, RetryCount: 1},
			"fluent-c": {Tag: "fluent-c", Status: hxhydrate.StatusError, RetryCount: 3},
		},
		durations: []hxhydrate.DurationStat{
			{Name: "hydrate:fluent-a", Count: 2, Total: 200 * time.Millisecond},
		},
		inflight: 2,
	}

	families := gather(t, NewCollector("hxhydrate", src))

	single := func(name string) float64 {
		f, ok := families[name]
		require.True(t, ok, "missing %s", name)
		require.Len(t, f.GetMetric(), 1)
		assert.Equal(t, "test-manager", labelValue(f.GetMetric()[0], "manager"))
		return value(f.GetMetric()[0])
	}

	assert.Equal(t, 4.0, single("hxhydrate_elements_total"))
	assert.Equal(t, 3.0, single("hxhydrate_elements_hydrated_total"))
	assert.Equal(t, 1.0, single("hxhydrate_components_failed_total"))
	assert.InDelta(t, 0.3, single("hxhydrate_hydration_seconds_total"), 1e-9)
	assert.InDelta(t, 0.1, single("hxhydrate_hydration_average_seconds"), 1e-9)
	assert.Equal(t, 87.5, single("hxhydrate_performance_score"))
	assert.Equal(t, 2.0, single("hxhydrate_attempts_in_flight"))
	assert.Equal(t, 4.0, single("hxhydrate_retries_total"))

	byStatus := map[string]float64{}
	for _, m := range families["hxhydrate_components"].GetMetric() {
		byStatus[labelValue(m, "status")] = value(m)
	}
	assert.Equal(t, map[string]float64{"pending": 0, "hydrating": 0, "hydrated": 2, "error": 1}, byStatus)

	measures := families["hxhydrate_measurements_total"].GetMetric()
	require.Len(t, measures, 1)
	assert.Equal(t, "hydrate:fluent-a", labelValue(measures[0], "operation"))
	assert.Equal(t, 2.0, value(measures[0]))
}

func TestCollectorEmpty(t *testing.T) {
	c := NewCollector("hx", &fakeSource{})
	// seven scalars, four status gauges and the retry counter
	assert.Equal(t, 12, testutil.CollectAndCount(c))
}

func TestSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink("hxhydrate", reg)
	require.NoError(t, err)

	var _ hxhydrate.AnalyticsSink = sink

	sink.Track(hxhydrate.AnalyticsEvent{Tag: "fluent-a", Strategy: hxhydrate.StrategyImmediate, Status: hxhydrate.StatusHydrated, Attempts: 1, Duration: 20 * time.Millisecond})
	sink.Track(hxhydrate.AnalyticsEvent{Tag: "fluent-b", Strategy: hxhydrate.StrategyImmediate, Status: hxhydrate.StatusError, Attempts: 4, Duration: time.Second})
	sink.Track(hxhydrate.AnalyticsEvent{Tag: "fluent-c", Strategy: hxhydrate.StrategyImmediate, Status: hxhydrate.StatusHydrated, Attempts: 1})

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("immediate", "hydrated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("immediate", "error")))

	_, err = NewSink("hxhydrate", reg)
	assert.Error(t, err, "registering twice must fail")
}
