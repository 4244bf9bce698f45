package dialogue

import (
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

const (
	DefaultWindow        = 5
	DefaultMaxAudioBytes = 4 << 20
)

type flushPhase int

const (
	phaseIdle flushPhase = iota
	phaseCollecting
	phaseInFlight
)

// AppendResult tells the caller what an audio append changed.
type AppendResult struct {
	// StartFlush is true for exactly one caller per burst: the one that moved
	// the context from idle to processing and now owns the flush.
	StartFlush bool
	// Full is true when the collected audio reached the size cap.
	Full bool
	// Dropped counts bytes discarded to stay under the cap while a
	// transcription was in flight.
	Dropped int
	// NextBurst marks the first chunk collected while a transcription is in
	// flight; it opens the burst the current flush owner handles next.
	NextBurst bool
}

// Context is the per-connection dialogue state: a rolling history of the
// last Window exchanges plus the audio collected since the last flush.
type Context struct {
	mu            sync.Mutex
	window        int
	maxAudioBytes int
	history       []Message
	chunks        [][]byte
	audioBytes    int
	phase         flushPhase
	lastActivity  time.Time
	now           func() time.Time
}

func NewContext(window, maxAudioBytes int) *Context {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxAudioBytes <= 0 {
		maxAudioBytes = DefaultMaxAudioBytes
	}
	return &Context{
		window:        window,
		maxAudioBytes: maxAudioBytes,
		lastActivity:  time.Now(),
		now:           time.Now,
	}
}

func (c *Context) Window() int { return c.window }

// AddMessage appends an entry and drops the oldest ones beyond 2*Window.
func (c *Context) AddMessage(role Role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, Message{Role: role, Content: content})
	if limit := 2 * c.window; len(c.history) > limit {
		trimmed := make([]Message, limit)
		copy(trimmed, c.history[len(c.history)-limit:])
		c.history = trimmed
	}
}

// History returns a copy of the current history, oldest first.
func (c *Context) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Context) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// AppendAudio stores a copy of chunk.
func (c *Context) AppendAudio(chunk []byte) AppendResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	var res AppendResult
	if len(chunk) == 0 {
		return res
	}
	c.chunks = append(c.chunks, append([]byte(nil), chunk...))
	c.audioBytes += len(chunk)

	switch c.phase {
	case phaseIdle:
		c.phase = phaseCollecting
		res.StartFlush = true
	case phaseInFlight:
		res.NextBurst = len(c.chunks) == 1
		for c.audioBytes > c.maxAudioBytes && len(c.chunks) > 1 {
			res.Dropped += len(c.chunks[0])
			c.audioBytes -= len(c.chunks[0])
			c.chunks[0] = nil
			c.chunks = c.chunks[1:]
		}
	}
	res.Full = c.audioBytes >= c.maxAudioBytes
	return res
}

// TakeAudio hands the flush owner everything collected so far and clears the
// accumulator.
func (c *Context) TakeAudio() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, 0, c.audioBytes)
	for _, chunk := range c.chunks {
		out = append(out, chunk...)
	}
	c.chunks = nil
	c.audioBytes = 0
	c.phase = phaseInFlight
	return out
}

// EndFlush finishes one transcription run. It returns true when audio arrived
// in the meantime and the owner must flush again; otherwise processing ends.
func (c *Context) EndFlush() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) > 0 {
		c.phase = phaseCollecting
		return true
	}
	c.phase = phaseIdle
	return false
}

// Release clears the processing flag unconditionally.
func (c *Context) Release() {
	c.mu.Lock()
	c.phase = phaseIdle
	c.mu.Unlock()
}

func (c *Context) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != phaseIdle
}

func (c *Context) AudioBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioBytes
}

func (c *Context) Touch() {
	c.mu.Lock()
	c.lastActivity = c.now()
	c.mu.Unlock()
}

func (c *Context) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Reset drops history and buffered audio.
func (c *Context) Reset() {
	c.mu.Lock()
	c.history = nil
	c.chunks = nil
	c.audioBytes = 0
	c.phase = phaseIdle
	c.mu.Unlock()
}
