package session

import (
	"log/slog"
	"time"

	"github.com/harunnryd/parley/pkg/adapters/stt"
	"github.com/harunnryd/parley/pkg/adapters/tts"
	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/harunnryd/parley/pkg/frames"
	"github.com/harunnryd/parley/pkg/llm"
	"github.com/harunnryd/parley/pkg/metrics"
)

// Config holds per-session tuning. Zero values fall back to defaults.
type Config struct {
	ContextWindow     int           `mapstructure:"context_window"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	AudioChunkSize    int           `mapstructure:"audio_chunk_size"`
	CoalesceWindow    time.Duration `mapstructure:"coalesce_window"`
	MaxAudioBytes     int           `mapstructure:"max_audio_bytes"`
	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout"`
	GenerateTimeout   time.Duration `mapstructure:"generate_timeout"`
	SynthesizeTimeout time.Duration `mapstructure:"synthesize_timeout"`
}

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultCoalesceWindow    = 200 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.ContextWindow <= 0 {
		c.ContextWindow = dialogue.DefaultWindow
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.AudioChunkSize <= 0 {
		c.AudioChunkSize = frames.DefaultChunkSize
	}
	if c.CoalesceWindow <= 0 {
		c.CoalesceWindow = DefaultCoalesceWindow
	}
	if c.MaxAudioBytes <= 0 {
		c.MaxAudioBytes = dialogue.DefaultMaxAudioBytes
	}
	return c
}

// Pipeline bundles the three collaborators every session drives.
type Pipeline struct {
	Transcriber stt.Transcriber
	Generator   llm.Generator
	Synthesizer tts.Synthesizer
}

type Options struct {
	Config   Config
	Pipeline Pipeline
	Observer metrics.Observer
	Logger   *slog.Logger
}
