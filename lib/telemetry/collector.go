// Package telemetry exports scheduler metrics to Prometheus.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm/hxhydrate"
)

// Source is the part of a manager the collector reads.
type Source interface {
	ID() string
	GetMetrics() hxhydrate.Metrics
	GetComponentStates() map[string]hxhydrate.ComponentState
	Durations() []hxhydrate.DurationStat
	InFlight() int
}

// Collector reads a manager on every scrape.
type Collector struct {
	src Source

	elements    *prometheus.Desc
	hydrated    *prometheus.Desc
	failed      *prometheus.Desc
	totalTime   *prometheus.Desc
	avgTime     *prometheus.Desc
	score       *prometheus.Desc
	inflight    *prometheus.Desc
	tags        *prometheus.Desc
	retries     *prometheus.Desc
	measures    *prometheus.Desc
	measureTime *prometheus.Desc
}

// NewCollector creates a collector for src. Every series carries a
// "manager" label with the manager ID.
func NewCollector(namespace string, src Source) *Collector {
	constLabels := prometheus.Labels{"manager": src.ID()}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, constLabels)
	}
	return &Collector{
		src:         src,
		elements:    desc("elements_total", "Elements that started activation"),
		hydrated:    desc("elements_hydrated_total", "Elements activated successfully"),
		failed:      desc("components_failed_total", "Tags whose activation failed for good"),
		totalTime:   desc("hydration_seconds_total", "Summed element activation time"),
		avgTime:     desc("hydration_average_seconds", "Average element activation time"),
		score:       desc("performance_score", "Performance score from 0 to 100"),
		inflight:    desc("attempts_in_flight", "Strategy attempts currently running"),
		tags:        desc("components", "Tags by lifecycle status", "status"),
		retries:     desc("retries_total", "Retries performed across tags"),
		measures:    desc("measurements_total", "Measurements recorded per operation", "operation"),
		measureTime: desc("measurement_seconds_total", "Summed measurement time per operation", "operation"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.elements, c.hydrated, c.failed, c.totalTime, c.avgTime, c.score,
		c.inflight, c.tags, c.retries, c.measures, c.measureTime,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.GetMetrics()
	ch <- prometheus.MustNewConstMetric(c.elements, prometheus.CounterValue, float64(m.TotalComponents))
	ch <- prometheus.MustNewConstMetric(c.hydrated, prometheus.CounterValue, float64(m.HydratedComponents))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(m.FailedComponents))
	ch <- prometheus.MustNewConstMetric(c.totalTime, prometheus.CounterValue, m.TotalHydrationTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.avgTime, prometheus.GaugeValue, m.AverageHydrationTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.score, prometheus.GaugeValue, m.PerformanceScore)
	ch <- prometheus.MustNewConstMetric(c.inflight, prometheus.GaugeValue, float64(c.src.InFlight()))

	counts := map[hxhydrate.Status]int{
		hxhydrate.StatusPending:   0,
		hxhydrate.StatusHydrating: 0,
		hxhydrate.StatusHydrated:  0,
		hxhydrate.StatusError:     0,
	}
	retries := 0
	for _, st := range c.src.GetComponentStates() {
		counts[st.Status]++
		retries += st.RetryCount
	}
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.tags, prometheus.GaugeValue, float64(n), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.retries, prometheus.CounterValue, float64(retries))

	for _, d := range c.src.Durations() {
		ch <- prometheus.MustNewConstMetric(c.measures, prometheus.CounterValue, float64(d.Count), d.Name)
		ch <- prometheus.MustNewConstMetric(c.measureTime, prometheus.CounterValue, d.Total.Seconds(), d.Name)
	}
}
