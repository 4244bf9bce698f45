package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonTranscribe ReasonCode = "transcribe"
	ReasonGenerate   ReasonCode = "generate"
	ReasonSynthesize ReasonCode = "synthesize"

	// ReasonGeneratorDegraded is returned while the generator's circuit is open.
	ReasonGeneratorDegraded ReasonCode = "generator_degraded"
	ReasonRateLimit         ReasonCode = "rate_limit"

	ReasonTransportSend ReasonCode = "transport_send"
	ReasonDisconnect    ReasonCode = "disconnect"
	ReasonShutdown      ReasonCode = "shutdown"
	ReasonHeartbeat     ReasonCode = "heartbeat"
	ReasonDecode        ReasonCode = "decode"
	ReasonPanic         ReasonCode = "panic"
	ReasonConfig        ReasonCode = "config"
)

// UserMessage is the error text reported to clients for a reason.
func UserMessage(reason ReasonCode) string {
	switch reason {
	case ReasonTranscribe:
		return "speech recognition failed"
	case ReasonGenerate:
		return "response generation failed"
	case ReasonGeneratorDegraded:
		return "response generation is temporarily unavailable"
	case ReasonSynthesize:
		return "speech synthesis failed"
	default:
		return "internal error"
	}
}
