package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned for text that has nothing left to speak after
// cleanup.
var ErrEmptyText = errors.New("tts: empty text")

// Synthesizer renders text as a complete audio payload.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type SynthesizerFunc func(ctx context.Context, text string) ([]byte, error)

func (f SynthesizerFunc) Name() string { return "func" }

func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}
