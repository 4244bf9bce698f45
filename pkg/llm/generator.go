package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/harunnryd/parley/pkg/dialogue"
)

// Generator produces the assistant's next reply from the dialogue history.
type Generator interface {
	Name() string
	Generate(ctx context.Context, history []dialogue.Message) (string, error)
}

type GeneratorFunc func(ctx context.Context, history []dialogue.Message) (string, error)

func (f GeneratorFunc) Name() string { return "func" }

func (f GeneratorFunc) Generate(ctx context.Context, history []dialogue.Message) (string, error) {
	return f(ctx, history)
}

// StatusError is a non-2xx reply from a completion endpoint.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// ErrMalformedResponse marks a completion body that could not be decoded or
// carried no choices.
var ErrMalformedResponse = errors.New("malformed completion response")
