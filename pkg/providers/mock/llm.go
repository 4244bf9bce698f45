package mock

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/parley/pkg/configutil"
	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/harunnryd/parley/pkg/llm"
)

type GeneratorConfig struct {
	// Reply is returned for every call; empty echoes the last user turn.
	Reply string        `mapstructure:"reply"`
	Delay time.Duration `mapstructure:"delay"`
}

var GeneratorSchema = configutil.Schema{Optional: []string{"reply", "delay"}}

type Generator struct {
	cfg   GeneratorConfig
	mu    sync.Mutex
	calls [][]dialogue.Message
	// Fn overrides the scripted behavior when set.
	Fn func(ctx context.Context, history []dialogue.Message) (string, error)
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	return &Generator{cfg: cfg}
}

func (g *Generator) Name() string { return "mock_llm" }

func (g *Generator) Generate(ctx context.Context, history []dialogue.Message) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, append([]dialogue.Message(nil), history...))
	g.mu.Unlock()
	if err := sleep(ctx, g.cfg.Delay); err != nil {
		return "", err
	}
	if g.Fn != nil {
		return g.Fn(ctx, history)
	}
	if g.cfg.Reply != "" {
		return g.cfg.Reply, nil
	}
	return "you said: " + LastUser(history), nil
}

func (g *Generator) Calls() [][]dialogue.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([][]dialogue.Message, len(g.calls))
	copy(out, g.calls)
	return out
}

// LastUser returns the content of the most recent user entry.
func LastUser(history []dialogue.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == dialogue.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

var _ llm.Generator = (*Generator)(nil)
