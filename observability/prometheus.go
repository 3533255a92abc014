package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DurationKey is the Data attribute PrometheusObserver reads event
// durations from, in milliseconds.
const DurationKey = "duration_ms"

// PrometheusObserver counts events by type, level and source, and records
// the duration_ms attribute of events that carry one.
type PrometheusObserver struct {
	events    *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPrometheusObserver registers the observer's collectors with reg under
// namespace.
func NewPrometheusObserver(reg prometheus.Registerer, namespace string) *PrometheusObserver {
	factory := promauto.With(reg)
	return &PrometheusObserver{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Observability events by type, level and source.",
		}, []string{"type", "level", "source"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Durations reported by events, by event type.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"type"}),
	}
}

func (o *PrometheusObserver) OnEvent(ctx context.Context, event Event) {
	o.events.WithLabelValues(string(event.Type), event.Level.String(), event.Source).Inc()

	if ms, ok := durationMS(event.Data[DurationKey]); ok {
		o.durations.WithLabelValues(string(event.Type)).Observe(ms / 1000)
	}
}

func durationMS(v any) (float64, bool) {
	switch d := v.(type) {
	case float64:
		return d, true
	case int:
		return float64(d), true
	case int64:
		return float64(d), true
	case time.Duration:
		return float64(d) / float64(time.Millisecond), true
	default:
		return 0, false
	}
}
