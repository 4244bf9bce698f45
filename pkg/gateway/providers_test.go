package gateway

import (
	"context"
	"testing"

	"github.com/harunnryd/parley/pkg/adapters/stt"
	"github.com/harunnryd/parley/pkg/llm"
	"github.com/harunnryd/parley/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMockPipeline(t *testing.T) {
	p, err := DefaultProviders().BuildPipeline(VendorsConfig{
		STT: VendorConfig{Provider: "mock", Settings: map[string]any{"text": "hi there"}},
		TTS: VendorConfig{Provider: "Mock", Settings: map[string]any{"bytes_per_rune": 10}},
		LLM: VendorConfig{Provider: " mock ", Settings: map[string]any{"reply": "ok"}},
	}, nil)
	require.NoError(t, err)

	text, err := p.Transcriber.Transcribe(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)

	reply, err := p.Generator.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	audio, err := p.Synthesizer.Synthesize(context.Background(), "abc")
	require.NoError(t, err)
	assert.Len(t, audio, 30)
}

func TestBuildVendorPipeline(t *testing.T) {
	p, err := DefaultProviders().BuildPipeline(VendorsConfig{
		STT: VendorConfig{Provider: "deepgram", Settings: map[string]any{"api_key": "dg", "model": "nova-2"}},
		TTS: VendorConfig{Provider: "elevenlabs", Settings: map[string]any{"api_key": "el", "voice_id": "v1"}},
		LLM: VendorConfig{Provider: "openai", Settings: map[string]any{"api_key": "sk", "model": "gpt-4o-mini", "retries": "1"}},
	}, metrics.NewMemoryObserver())
	require.NoError(t, err)
	assert.Equal(t, "deepgram", p.Transcriber.Name())
	assert.Equal(t, "elevenlabs", p.Synthesizer.Name())
	assert.NotNil(t, p.Generator)
}

func TestBuildPipelineErrors(t *testing.T) {
	r := DefaultProviders()
	cases := []struct {
		name    string
		vendors VendorsConfig
		want    string
	}{
		{
			name: "unknown stt",
			vendors: VendorsConfig{
				STT: VendorConfig{Provider: "whisper"},
				TTS: VendorConfig{Provider: "mock"},
				LLM: VendorConfig{Provider: "mock"},
			},
			want: "stt provider not registered: whisper (known: deepgram, mock)",
		},
		{
			name: "openai missing settings",
			vendors: VendorsConfig{
				STT: VendorConfig{Provider: "mock"},
				TTS: VendorConfig{Provider: "mock"},
				LLM: VendorConfig{Provider: "openai"},
			},
			want: "vendors.llm.settings: missing: api_key, model",
		},
		{
			name: "unknown setting",
			vendors: VendorsConfig{
				STT: VendorConfig{Provider: "mock"},
				TTS: VendorConfig{Provider: "mock", Settings: map[string]any{"volume": 3}},
				LLM: VendorConfig{Provider: "mock"},
			},
			want: "unknown: volume",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.BuildPipeline(tc.vendors, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRegisterCustomProvider(t *testing.T) {
	r := NewProviderRegistry()
	r.RegisterSTT("Echo", func(map[string]any) (stt.Transcriber, error) {
		return stt.TranscriberFunc(func(_ context.Context, audio []byte) (string, error) {
			return string(audio), nil
		}), nil
	})
	tr, err := r.BuildSTT(VendorConfig{Provider: "echo"})
	require.NoError(t, err)
	text, err := tr.Transcribe(context.Background(), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestBuildObservers(t *testing.T) {
	obs := BuildObservers(MetricsConfig{Enabled: true, Namespace: "gw_test", LogEvents: true, SampleRate: 1, Buffer: 16}, nil)
	require.NotNil(t, obs.Prometheus)
	metrics.Record(obs.Observer, metrics.EventSessionOpen, 1, nil)
	obs.Close()

	families, err := obs.Prometheus.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	off := BuildObservers(MetricsConfig{}, nil)
	assert.Nil(t, off.Prometheus)
	assert.IsType(t, metrics.NoopObserver{}, off.Observer)
	off.Close()
}

func TestApplyDialogue(t *testing.T) {
	p, err := DefaultProviders().BuildPipeline(VendorsConfig{
		STT: VendorConfig{Provider: "mock", Settings: map[string]any{"text": "My Air Conditioner broke"}},
		TTS: VendorConfig{Provider: "mock"},
		LLM: VendorConfig{Provider: "mock", Settings: map[string]any{"reply": "Sure. I can help. Anything else?"}},
	}, nil)
	require.NoError(t, err)

	p = ApplyDialogue(p, DialogueConfig{
		TranscriptReplacements: map[string]string{"air conditioner": "ac"},
		LimitConfig:            llm.LimitConfig{MaxSentences: 2},
	})
	text, err := p.Transcriber.Transcribe(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "my ac broke", text)

	reply, err := p.Generator.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Sure. I can help.", reply)
}
