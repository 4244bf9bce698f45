package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harunnryd/parley/pkg/adapters/stt"
	"github.com/harunnryd/parley/pkg/configutil"
)

// TranscriberConfig also doubles as the settings block for provider "mock".
type TranscriberConfig struct {
	// Text is returned for every call; empty means "heard N bytes".
	Text  string        `mapstructure:"text"`
	Delay time.Duration `mapstructure:"delay"`
	Err   error         `mapstructure:"-"`
}

var TranscriberSchema = configutil.Schema{Optional: []string{"text", "delay"}}

// Transcriber is a scripted stt.Transcriber that records every buffer.
type Transcriber struct {
	cfg   TranscriberConfig
	mu    sync.Mutex
	calls [][]byte
	// Fn overrides the scripted behavior when set.
	Fn func(ctx context.Context, audio []byte) (string, error)
}

func NewTranscriber(cfg TranscriberConfig) *Transcriber {
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_stt" }

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	t.mu.Lock()
	t.calls = append(t.calls, append([]byte(nil), audio...))
	t.mu.Unlock()
	if err := sleep(ctx, t.cfg.Delay); err != nil {
		return "", err
	}
	if t.Fn != nil {
		return t.Fn(ctx, audio)
	}
	if t.cfg.Err != nil {
		return "", t.cfg.Err
	}
	if t.cfg.Text != "" {
		return t.cfg.Text, nil
	}
	return fmt.Sprintf("heard %d bytes", len(audio)), nil
}

// Calls returns copies of the buffers passed to Transcribe, in order.
func (t *Transcriber) Calls() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.calls))
	copy(out, t.calls)
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ stt.Transcriber = (*Transcriber)(nil)
