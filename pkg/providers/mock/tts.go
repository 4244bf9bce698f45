package mock

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/harunnryd/parley/pkg/adapters/tts"
	"github.com/harunnryd/parley/pkg/configutil"
)

type SynthesizerConfig struct {
	// BytesPerRune sizes the output; 16kHz 16-bit PCM at roughly 100ms
	// per character by default.
	BytesPerRune int           `mapstructure:"bytes_per_rune"`
	Delay        time.Duration `mapstructure:"delay"`
}

var SynthesizerSchema = configutil.Schema{Optional: []string{"bytes_per_rune", "delay"}}

// Synthesizer returns a deterministic byte ramp sized by the text length.
type Synthesizer struct {
	cfg   SynthesizerConfig
	mu    sync.Mutex
	calls []string
	Fn    func(ctx context.Context, text string) ([]byte, error)
}

func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	if cfg.BytesPerRune <= 0 {
		cfg.BytesPerRune = 3200
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
	if err := sleep(ctx, s.cfg.Delay); err != nil {
		return nil, err
	}
	if s.Fn != nil {
		return s.Fn(ctx, text)
	}
	text = tts.CleanText(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	return Ramp(utf8.RuneCountInString(text) * s.cfg.BytesPerRune), nil
}

func (s *Synthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Ramp returns n bytes cycling through 0..250.
func Ramp(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
