package frames

import (
	"bytes"
	"encoding/json"
)

// MessageType is the "type" tag carried by every JSON text frame.
type MessageType string

const (
	TypeText          MessageType = "text"
	TypePong          MessageType = "pong"
	TypePing          MessageType = "ping"
	TypeTranscription MessageType = "transcription"
	TypeResponse      MessageType = "response"
	TypeError         MessageType = "error"
)

// Inbound is a structured client message.
type Inbound struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type OutcomeKind int

const (
	OutcomePlainText OutcomeKind = iota
	OutcomeStructured
)

// ParseOutcome is either a structured message or the raw text of a frame
// that did not decode as a JSON object.
type ParseOutcome struct {
	Kind    OutcomeKind
	Message Inbound
	Text    string
}

func (o ParseOutcome) Structured() bool { return o.Kind == OutcomeStructured }

// Parse decodes a text frame. Anything that is not a JSON object falls back to
// plain text; decoding never fails.
func Parse(raw string) ParseOutcome {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ParseOutcome{Kind: OutcomePlainText, Text: raw}
	}
	var wire struct {
		Type json.RawMessage `json:"type"`
		Text json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return ParseOutcome{Kind: OutcomePlainText, Text: raw}
	}
	// A well-formed object is always structured. Fields of the wrong JSON
	// type decode as empty so the object itself is never treated as speech.
	return ParseOutcome{Kind: OutcomeStructured, Message: Inbound{
		Type: MessageType(jsonString(wire.Type)),
		Text: jsonString(wire.Text),
	}}
}

func jsonString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// Outbound is a typed server message. Text is a pointer so transcription and
// response frames always carry the field, even when empty.
type Outbound struct {
	Type  MessageType `json:"type"`
	Text  *string     `json:"text,omitempty"`
	Error string      `json:"error,omitempty"`
}

func Ping() Outbound { return Outbound{Type: TypePing} }

func Transcription(text string) Outbound {
	return Outbound{Type: TypeTranscription, Text: &text}
}

func Response(text string) Outbound {
	return Outbound{Type: TypeResponse, Text: &text}
}

func Error(msg string) Outbound {
	return Outbound{Type: TypeError, Error: msg}
}

func (o Outbound) Marshal() ([]byte, error) {
	return json.Marshal(o)
}
