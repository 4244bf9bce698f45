package gateway

import (
	"log/slog"

	"github.com/harunnryd/parley/pkg/logging"
	"github.com/harunnryd/parley/pkg/metrics"
)

// Observers is the metrics fan-out the sessions report into.
type Observers struct {
	Observer metrics.Observer
	// Prometheus is nil when metrics are disabled.
	Prometheus *metrics.PrometheusObserver

	async *metrics.AsyncObserver
}

// BuildObservers assembles Prometheus and the optional event log behind a
// single async observer so session goroutines never block on reporting.
// Per-chunk audio events are sampled in the log only.
func BuildObservers(cfg MetricsConfig, log *slog.Logger) *Observers {
	if log == nil {
		log = slog.Default()
	}
	out := &Observers{}
	var list []metrics.Observer
	if cfg.Enabled {
		out.Prometheus = metrics.NewPrometheusObserver(cfg.Namespace)
		list = append(list, out.Prometheus)
	}
	if cfg.LogEvents {
		logObs := metrics.NewLogObserver(logging.NewComponentLogger(log, "metrics"), slog.LevelDebug)
		list = append(list, metrics.NewSamplingObserver(logObs, cfg.SampleRate, metrics.EventAudioIn, metrics.EventAudioOut))
	}
	if len(list) == 0 {
		out.Observer = metrics.NoopObserver{}
		return out
	}
	out.async = metrics.NewAsyncObserver(metrics.NewMultiObserver(list...), cfg.Buffer)
	out.Observer = out.async
	return out
}

// Close flushes pending events.
func (o *Observers) Close() {
	if o.async == nil {
		return
	}
	if dropped := o.async.Dropped(); dropped > 0 {
		slog.Default().Warn("metrics_events_dropped", slog.Int64("dropped", dropped))
	}
	o.async.Close()
}
