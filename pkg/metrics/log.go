package metrics

import (
	"context"
	"io"
	"log/slog"
	"slices"
)

// LogObserver writes events as structured log records.
type LogObserver struct {
	log   *slog.Logger
	level slog.Level
}

func NewLogObserver(log *slog.Logger, level slog.Level) *LogObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LogObserver{log: log, level: level}
}

// NewJSONLObserver writes one JSON line per event to w.
func NewJSONLObserver(w io.Writer) *LogObserver {
	if w == nil {
		w = io.Discard
	}
	return NewLogObserver(slog.New(slog.NewJSONHandler(w, nil)), slog.LevelInfo)
}

func (o *LogObserver) RecordEvent(ev MetricsEvent) {
	if !o.log.Enabled(context.Background(), o.level) {
		return
	}
	attrs := make([]slog.Attr, 0, 3+len(ev.Tags)+len(ev.Fields))
	attrs = append(attrs,
		slog.String("event", ev.Name),
		slog.Float64("value", ev.Value),
		slog.Time("at", ev.Time))
	for _, k := range sortedKeys(ev.Tags) {
		attrs = append(attrs, slog.String(k, ev.Tags[k]))
	}
	for _, k := range sortedKeys(ev.Fields) {
		attrs = append(attrs, slog.Any(k, ev.Fields[k]))
	}
	o.log.LogAttrs(context.Background(), o.level, "metric", attrs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MultiObserver fans an event out to every non-nil observer in order.
type MultiObserver struct {
	list []Observer
}

func NewMultiObserver(list ...Observer) *MultiObserver {
	return &MultiObserver{list: list}
}

func (m *MultiObserver) RecordEvent(ev MetricsEvent) {
	for _, obs := range m.list {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}
