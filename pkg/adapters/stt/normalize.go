package stt

import (
	"context"
	"sort"
	"strings"
)

// NormalizingTranscriber rewrites domain terms in transcripts before they
// reach the dialogue, e.g. "air conditioner" to "ac". Matching ignores case.
type NormalizingTranscriber struct {
	inner Transcriber
	pairs [][2]string
}

func NewNormalizingTranscriber(inner Transcriber, replacements map[string]string) *NormalizingTranscriber {
	pairs := make([][2]string, 0, len(replacements))
	for from, to := range replacements {
		from = strings.ToLower(strings.TrimSpace(from))
		if from == "" {
			continue
		}
		pairs = append(pairs, [2]string{from, to})
	}
	// longest phrase first so "air conditioner" wins over "air"
	sort.Slice(pairs, func(i, j int) bool {
		if len(pairs[i][0]) != len(pairs[j][0]) {
			return len(pairs[i][0]) > len(pairs[j][0])
		}
		return pairs[i][0] < pairs[j][0]
	})
	return &NormalizingTranscriber{inner: inner, pairs: pairs}
}

func (n *NormalizingTranscriber) Name() string { return n.inner.Name() }

func (n *NormalizingTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	text, err := n.inner.Transcribe(ctx, audio)
	if err != nil || text == "" || len(n.pairs) == 0 {
		return text, err
	}
	return n.Normalize(text), nil
}

func (n *NormalizingTranscriber) Normalize(text string) string {
	out := strings.ToLower(text)
	for _, p := range n.pairs {
		out = strings.ReplaceAll(out, p[0], p[1])
	}
	if out == strings.ToLower(text) {
		return text
	}
	return out
}

var _ Transcriber = (*NormalizingTranscriber)(nil)
