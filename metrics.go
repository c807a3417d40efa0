package hxhydrate

import (
	"sort"
	"sync"
	"time"
)

// Metrics aggregates activation outcomes for one manager. Element counts
// are per element; FailedComponents counts tags whose activation failed
// for good.
type Metrics struct {
	TotalComponents      int           `msgpack:"total" json:"totalComponents"`
	HydratedComponents   int           `msgpack:"hydrated" json:"hydratedComponents"`
	FailedComponents     int           `msgpack:"failed" json:"failedComponents"`
	TotalHydrationTime   time.Duration `msgpack:"total_time" json:"totalHydrationTime"`
	AverageHydrationTime time.Duration `msgpack:"avg_time" json:"averageHydrationTime"`
	PerformanceScore     float64       `msgpack:"score" json:"performanceScore"`
}

// Score thresholds.
const (
	scoreTargetAverage = 100 * time.Millisecond
	// scoreMsPerPoint is how much average time above the target costs one point.
	scoreMsPerPoint   = 20.0
	maxTimePenalty    = 50.0
	maxFailurePenalty = 50.0
)

// derive fills the computed fields from the running totals.
func (m Metrics) derive() Metrics {
	m.AverageHydrationTime = 0
	if m.HydratedComponents > 0 {
		m.AverageHydrationTime = m.TotalHydrationTime / time.Duration(m.HydratedComponents)
	}
	m.PerformanceScore = performanceScore(m.AverageHydrationTime, m.FailedComponents, m.TotalComponents)
	return m
}

// performanceScore is 100 with no failures and an average at or under
// 100ms. Slower averages and a higher failure share each cost up to 50
// points; the result is clamped to [0, 100].
func performanceScore(avg time.Duration, failed, total int) float64 {
	score := 100.0

	if avg > scoreTargetAverage {
		over := float64(avg-scoreTargetAverage) / float64(time.Millisecond)
		score -= min(maxTimePenalty, over/scoreMsPerPoint)
	}

	if failed > 0 {
		rate := 1.0
		if total > failed {
			rate = float64(failed) / float64(total)
		}
		score -= maxFailurePenalty * rate
	}

	return max(0, min(100, score))
}

// DurationStat summarises the measurements recorded under one name.
type DurationStat struct {
	Name  string        `msgpack:"name" json:"name"`
	Count int           `msgpack:"count" json:"count"`
	Total time.Duration `msgpack:"total" json:"total"`
	Max   time.Duration `msgpack:"max" json:"max"`
}

// Mean returns the average measurement.
func (d DurationStat) Mean() time.Duration {
	if d.Count == 0 {
		return 0
	}
	return d.Total / time.Duration(d.Count)
}

// durations collects elapsed times for operations named "hydrate:<tag>".
type durations struct {
	mu    sync.Mutex
	stats map[string]*DurationStat
}

func newDurations() *durations {
	return &durations{stats: make(map[string]*DurationStat)}
}

func measureName(tag string) string {
	return "hydrate:" + tag
}

func (d *durations) record(name string, elapsed time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.stats[name]
	if !ok {
		st = &DurationStat{Name: name}
		d.stats[name] = st
	}
	st.Count++
	st.Total += elapsed
	if elapsed > st.Max {
		st.Max = elapsed
	}
}

func (d *durations) snapshot() []DurationStat {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DurationStat, 0, len(d.stats))
	for _, st := range d.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *durations) reset() {
	d.mu.Lock()
	d.stats = make(map[string]*DurationStat)
	d.mu.Unlock()
}
