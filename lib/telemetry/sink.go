package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm/hxhydrate"
)

// Sink records analytics events as Prometheus series. It implements
// hxhydrate.AnalyticsSink.
type Sink struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	attempts *prometheus.HistogramVec
}

// NewSink creates a sink and registers its series with reg.
func NewSink(namespace string, reg prometheus.Registerer) (*Sink, error) {
	s := &Sink{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "outcomes_total",
			Help:      "Terminal activation outcomes by strategy and status",
		}, []string{"strategy", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "activation_seconds",
			Help:      "Time from request to terminal status",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"strategy", "status"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "attempts",
			Help:      "Strategy attempts per activation",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}, []string{"strategy"}),
	}
	for _, c := range []prometheus.Collector{s.outcomes, s.duration, s.attempts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Track implements hxhydrate.AnalyticsSink.
func (s *Sink) Track(ev hxhydrate.AnalyticsEvent) {
	strategy := string(ev.Strategy)
	status := string(ev.Status)
	s.outcomes.WithLabelValues(strategy, status).Inc()
	s.duration.WithLabelValues(strategy, status).Observe(ev.Duration.Seconds())
	s.attempts.WithLabelValues(strategy).Observe(float64(ev.Attempts))
}
