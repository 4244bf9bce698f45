package metrics

import "time"

// Event names recorded by sessions.
const (
	EventSessionOpen     = "session_open"
	EventSessionClose    = "session_close"
	EventStageTranscribe = "stage_transcribe"
	EventStageGenerate   = "stage_generate"
	EventStageSynthesize = "stage_synthesize"
	EventPipelineError   = "pipeline_error"
	EventAudioIn         = "audio_in"
	EventAudioOut        = "audio_out"
	EventHeartbeatFailed = "heartbeat_failed"
	EventUnitDropped     = "unit_dropped"
)

// Tag keys.
const (
	TagSession = "session_id"
	TagReason  = "reason_code"
	TagStage   = "stage"
	TagStatus  = "status"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// NewEvent stamps an event with the current time.
func NewEvent(name string, value float64, tags map[string]string) MetricsEvent {
	return MetricsEvent{Name: name, Time: time.Now(), Value: value, Tags: tags}
}

// Record is a nil-safe shorthand for obs.RecordEvent(NewEvent(...)).
func Record(obs Observer, name string, value float64, tags map[string]string) {
	if obs == nil {
		return
	}
	obs.RecordEvent(NewEvent(name, value, tags))
}
