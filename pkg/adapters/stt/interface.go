package stt

import "context"

// Transcriber turns one buffer of recorded speech into text. An empty string
// with a nil error means nothing intelligible was heard.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audio []byte) (string, error)

func (f TranscriberFunc) Name() string { return "func" }

func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f(ctx, audio)
}
