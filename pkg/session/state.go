package session

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// WorkUnit is one utterance queued for the pipeline worker.
type WorkUnit struct {
	SessionID string
	Text      string
}

// Conn is the outbound half of a client connection. Implementations must
// allow concurrent callers.
type Conn interface {
	SendText(data []byte) error
	SendBinary(data []byte) error
	Close() error
}
