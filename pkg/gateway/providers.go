package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/parley/pkg/adapters/stt"
	"github.com/harunnryd/parley/pkg/adapters/tts"
	"github.com/harunnryd/parley/pkg/configutil"
	"github.com/harunnryd/parley/pkg/llm"
	"github.com/harunnryd/parley/pkg/metrics"
	"github.com/harunnryd/parley/pkg/providers/deepgram"
	"github.com/harunnryd/parley/pkg/providers/elevenlabs"
	"github.com/harunnryd/parley/pkg/providers/mock"
	"github.com/harunnryd/parley/pkg/providers/openai"
	"github.com/harunnryd/parley/pkg/session"
)

type STTFactory func(settings map[string]any) (stt.Transcriber, error)
type TTSFactory func(settings map[string]any) (tts.Synthesizer, error)
type LLMFactory func(settings map[string]any, obs metrics.Observer) (llm.Generator, error)

// ProviderRegistry resolves vendor names from config to constructors.
type ProviderRegistry struct {
	stt map[string]STTFactory
	tts map[string]TTSFactory
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
		llm: make(map[string]LLMFactory),
	}
}

// DefaultProviders registers every built-in vendor.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterSTT("deepgram", func(settings map[string]any) (stt.Transcriber, error) {
		var s deepgram.Settings
		if err := configutil.Load("vendors.stt.settings", settings, deepgram.SettingsSchema, &s); err != nil {
			return nil, err
		}
		return deepgram.New(s)
	})
	r.RegisterSTT("mock", func(settings map[string]any) (stt.Transcriber, error) {
		var s mock.TranscriberConfig
		if err := configutil.Load("vendors.stt.settings", settings, mock.TranscriberSchema, &s); err != nil {
			return nil, err
		}
		return mock.NewTranscriber(s), nil
	})
	r.RegisterTTS("elevenlabs", func(settings map[string]any) (tts.Synthesizer, error) {
		var s elevenlabs.Settings
		if err := configutil.Load("vendors.tts.settings", settings, elevenlabs.SettingsSchema, &s); err != nil {
			return nil, err
		}
		return elevenlabs.New(s)
	})
	r.RegisterTTS("mock", func(settings map[string]any) (tts.Synthesizer, error) {
		var s mock.SynthesizerConfig
		if err := configutil.Load("vendors.tts.settings", settings, mock.SynthesizerSchema, &s); err != nil {
			return nil, err
		}
		return mock.NewSynthesizer(s), nil
	})
	r.RegisterLLM("openai", func(settings map[string]any, obs metrics.Observer) (llm.Generator, error) {
		var s openai.Settings
		if err := configutil.Load("vendors.llm.settings", settings, openai.SettingsSchema, &s); err != nil {
			return nil, err
		}
		return openai.Build(s, obs), nil
	})
	r.RegisterLLM("mock", func(settings map[string]any, _ metrics.Observer) (llm.Generator, error) {
		var s mock.GeneratorConfig
		if err := configutil.Load("vendors.llm.settings", settings, mock.GeneratorSchema, &s); err != nil {
			return nil, err
		}
		return mock.NewGenerator(s), nil
	})
	return r
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalizeName(name)] = factory
}

func (r *ProviderRegistry) BuildSTT(vendor VendorConfig) (stt.Transcriber, error) {
	fn := r.stt[normalizeName(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s (known: %s)", vendor.Provider, known(r.stt))
	}
	return fn(vendor.Settings)
}

func (r *ProviderRegistry) BuildTTS(vendor VendorConfig) (tts.Synthesizer, error) {
	fn := r.tts[normalizeName(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s (known: %s)", vendor.Provider, known(r.tts))
	}
	return fn(vendor.Settings)
}

func (r *ProviderRegistry) BuildLLM(vendor VendorConfig, obs metrics.Observer) (llm.Generator, error) {
	fn := r.llm[normalizeName(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s (known: %s)", vendor.Provider, known(r.llm))
	}
	return fn(vendor.Settings, obs)
}

// BuildPipeline constructs all three collaborators or fails on the first
// misconfigured vendor.
func (r *ProviderRegistry) BuildPipeline(vendors VendorsConfig, obs metrics.Observer) (session.Pipeline, error) {
	transcriber, err := r.BuildSTT(vendors.STT)
	if err != nil {
		return session.Pipeline{}, fmt.Errorf("build stt: %w", err)
	}
	generator, err := r.BuildLLM(vendors.LLM, obs)
	if err != nil {
		return session.Pipeline{}, fmt.Errorf("build llm: %w", err)
	}
	synthesizer, err := r.BuildTTS(vendors.TTS)
	if err != nil {
		return session.Pipeline{}, fmt.Errorf("build tts: %w", err)
	}
	return session.Pipeline{
		Transcriber: transcriber,
		Generator:   generator,
		Synthesizer: synthesizer,
	}, nil
}

// ApplyDialogue wraps the collaborators with transcript normalization and
// reply limits when configured.
func ApplyDialogue(p session.Pipeline, cfg DialogueConfig) session.Pipeline {
	if len(cfg.TranscriptReplacements) > 0 {
		p.Transcriber = stt.NewNormalizingTranscriber(p.Transcriber, cfg.TranscriptReplacements)
	}
	if cfg.LimitConfig.Enabled() {
		p.Generator = llm.NewLimitGenerator(p.Generator, cfg.LimitConfig)
	}
	return p
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func known[F any](m map[string]F) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
