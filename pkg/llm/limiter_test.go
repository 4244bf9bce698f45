package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitReply(t *testing.T) {
	cases := []struct {
		name string
		in   string
		cfg  LimitConfig
		want string
	}{
		{name: "disabled", in: "One. Two. Three.", want: "One. Two. Three."},
		{name: "sentences", in: "One. Two! Three?", cfg: LimitConfig{MaxSentences: 2}, want: "One. Two!"},
		{name: "cjk sentences", in: "你好。今天很好！再见。", cfg: LimitConfig{MaxSentences: 1}, want: "你好。"},
		{name: "chars by rune", in: "你好世界你好", cfg: LimitConfig{MaxChars: 4}, want: "你好世界"},
		{name: "both", in: "A long first sentence. Second.", cfg: LimitConfig{MaxChars: 6, MaxSentences: 1}, want: "A long"},
		{name: "no terminator", in: "no punctuation here", cfg: LimitConfig{MaxSentences: 1}, want: "no punctuation here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LimitReply(tc.in, tc.cfg))
		})
	}
}

func TestLimitGenerator(t *testing.T) {
	inner := GeneratorFunc(func(ctx context.Context, history []dialogue.Message) (string, error) {
		return "First. Second. Third.", nil
	})
	g := NewLimitGenerator(inner, LimitConfig{MaxSentences: 1})
	reply, err := g.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "First.", reply)

	boom := errors.New("boom")
	failing := NewLimitGenerator(GeneratorFunc(func(context.Context, []dialogue.Message) (string, error) {
		return "", boom
	}), LimitConfig{MaxChars: 1})
	_, err = failing.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.True(t, LimitConfig{MaxChars: 1}.Enabled())
	assert.False(t, LimitConfig{}.Enabled())
}
