package frames

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		structured bool
		msgType    MessageType
		text       string
	}{
		{name: "text message", raw: `{"type":"text","text":"hello"}`, structured: true, msgType: TypeText, text: "hello"},
		{name: "pong", raw: `{"type":"pong"}`, structured: true, msgType: TypePong},
		{name: "unknown type", raw: `{"type":"foo"}`, structured: true, msgType: "foo"},
		{name: "plain text", raw: "hello there", text: "hello there"},
		{name: "broken json", raw: `{"type":"text",`, text: `{"type":"text",`},
		{name: "json scalar", raw: `42`, text: `42`},
		{name: "json string", raw: `"quoted"`, text: `"quoted"`},
		{name: "empty", raw: "", text: ""},
		{name: "numeric text field", raw: `{"type":"text","text":123}`, structured: true, msgType: TypeText},
		{name: "object text field", raw: `{"type":"text","text":{"a":1}}`, structured: true, msgType: TypeText},
		{name: "non-string type", raw: `{"type":7,"text":"hi"}`, structured: true, text: "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Parse(tt.raw)
			assert.Equal(t, tt.structured, out.Structured())
			if tt.structured {
				assert.Equal(t, tt.msgType, out.Message.Type)
				assert.Equal(t, tt.text, out.Message.Text)
				return
			}
			assert.Equal(t, tt.text, out.Text)
		})
	}
}

func TestOutboundShapes(t *testing.T) {
	cases := map[string]Outbound{
		`{"type":"ping"}`:                      Ping(),
		`{"type":"transcription","text":""}`:   Transcription(""),
		`{"type":"response","text":"hi"}`:      Response("hi"),
		`{"type":"error","error":"boom"}`:      Error("boom"),
		`{"type":"transcription","text":"ok"}`: Transcription("ok"),
	}
	for want, msg := range cases {
		b, err := msg.Marshal()
		require.NoError(t, err)
		assert.JSONEq(t, want, string(b))
	}
}

func TestChunkRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 4095, 4096, 4097, 9000, 3 * 4096} {
		data := bytes.Repeat([]byte{0xAB}, size)
		for i := range data {
			data[i] = byte(i % 251)
		}
		chunks := Chunk(data, DefaultChunkSize)
		require.Len(t, chunks, (size+DefaultChunkSize-1)/DefaultChunkSize)
		var joined []byte
		for i, c := range chunks {
			if i < len(chunks)-1 {
				require.Len(t, c, DefaultChunkSize)
			}
			joined = append(joined, c...)
		}
		require.True(t, bytes.Equal(data, joined), "size %d", size)
	}
}
