package llm

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/harunnryd/parley/pkg/dialogue"
)

type LimitConfig struct {
	MaxChars     int `mapstructure:"max_reply_chars"`
	MaxSentences int `mapstructure:"max_reply_sentences"`
}

// Enabled reports whether any limit is set.
func (c LimitConfig) Enabled() bool { return c.MaxChars > 0 || c.MaxSentences > 0 }

// LimitGenerator keeps spoken replies short by cutting them after a number
// of sentences and a number of runes. Zero disables a limit.
type LimitGenerator struct {
	inner Generator
	cfg   LimitConfig
}

func NewLimitGenerator(inner Generator, cfg LimitConfig) *LimitGenerator {
	return &LimitGenerator{inner: inner, cfg: cfg}
}

func (g *LimitGenerator) Name() string { return g.inner.Name() }

func (g *LimitGenerator) Generate(ctx context.Context, history []dialogue.Message) (string, error) {
	reply, err := g.inner.Generate(ctx, history)
	if err != nil {
		return reply, err
	}
	return LimitReply(reply, g.cfg), nil
}

func LimitReply(text string, cfg LimitConfig) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	out := truncateSentences(text, cfg.MaxSentences)
	if cfg.MaxChars > 0 && utf8.RuneCountInString(out) > cfg.MaxChars {
		out = strings.TrimSpace(string([]rune(out)[:cfg.MaxChars]))
	}
	return out
}

func truncateSentences(text string, maxSentences int) string {
	if maxSentences <= 0 {
		return text
	}
	var out strings.Builder
	count := 0
	for _, r := range text {
		out.WriteRune(r)
		if isSentenceEnd(r) {
			count++
			if count >= maxSentences {
				break
			}
		}
	}
	result := strings.TrimSpace(out.String())
	if result == "" {
		return text
	}
	return result
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

var _ Generator = (*LimitGenerator)(nil)
