package stt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizingTranscriber(t *testing.T) {
	inner := TranscriberFunc(func(context.Context, []byte) (string, error) {
		return "My Air Conditioner is leaking", nil
	})
	n := NewNormalizingTranscriber(inner, map[string]string{
		"air":             "wind",
		"air conditioner": "ac",
		"":                "ignored",
	})
	text, err := n.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "my ac is leaking", text)
}

func TestNormalizeLeavesUnmatchedTextAlone(t *testing.T) {
	n := NewNormalizingTranscriber(TranscriberFunc(nil), map[string]string{"freon": "refrigerant"})
	assert.Equal(t, "Hello There", n.Normalize("Hello There"))
	assert.Equal(t, "refrigerant leak", n.Normalize("Freon leak"))
}
