package frames

import "time"

type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// Frame is one inbound unit delivered by the transport to a session.
type Frame interface {
	Kind() Kind
	PTS() int64
}

type TextFrame struct {
	pts  int64
	text string
}

func NewTextFrame(pts int64, text string) TextFrame {
	return TextFrame{pts: pts, text: text}
}

// Text builds a TextFrame stamped with the current time.
func Text(text string) TextFrame {
	return NewTextFrame(time.Now().UnixNano(), text)
}

func (t TextFrame) Kind() Kind   { return KindText }
func (t TextFrame) PTS() int64   { return t.pts }
func (t TextFrame) Text() string { return t.text }

type AudioFrame struct {
	pts  int64
	data []byte
}

func NewAudioFrame(pts int64, data []byte) AudioFrame {
	return AudioFrame{pts: pts, data: data}
}

// Audio builds an AudioFrame stamped with the current time.
func Audio(data []byte) AudioFrame {
	return NewAudioFrame(time.Now().UnixNano(), data)
}

func (a AudioFrame) Kind() Kind         { return KindAudio }
func (a AudioFrame) PTS() int64         { return a.pts }
func (a AudioFrame) Data() []byte       { return append([]byte(nil), a.data...) }
func (a AudioFrame) RawPayload() []byte { return a.data }
func (a AudioFrame) Len() int           { return len(a.data) }
