package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver folds session events into Prometheus series.
//
// Stage events carry their duration in seconds as Value; audio events carry a
// byte count.
type PrometheusObserver struct {
	registry *prometheus.Registry

	SessionsActive prometheus.Gauge
	EventsTotal    *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	AudioBytes     *prometheus.CounterVec
}

func NewPrometheusObserver(namespace string) *PrometheusObserver {
	if namespace == "" {
		namespace = "parley"
	}
	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live dialogue sessions",
		},
	)
	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle and pipeline events",
		},
		[]string{"event", "reason"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)
	audioBytes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Audio bytes received and sent",
		},
		[]string{"direction"},
	)

	registry.MustRegister(sessionsActive, eventsTotal, stageDuration, audioBytes)

	return &PrometheusObserver{
		registry:       registry,
		SessionsActive: sessionsActive,
		EventsTotal:    eventsTotal,
		StageDuration:  stageDuration,
		AudioBytes:     audioBytes,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (p *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusObserver) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	p.EventsTotal.WithLabelValues(ev.Name, ev.Tags[TagReason]).Inc()
	switch ev.Name {
	case EventSessionOpen:
		p.SessionsActive.Inc()
	case EventSessionClose:
		p.SessionsActive.Dec()
	case EventAudioIn:
		p.AudioBytes.WithLabelValues("in").Add(ev.Value)
	case EventAudioOut:
		p.AudioBytes.WithLabelValues("out").Add(ev.Value)
	default:
		if stage, ok := strings.CutPrefix(ev.Name, "stage_"); ok {
			p.StageDuration.WithLabelValues(stage).Observe(ev.Value)
		}
	}
}
