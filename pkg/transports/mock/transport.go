package mock

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by sends after Close.
var ErrClosed = errors.New("mock conn closed")

// Sent is one outbound message. Binary is false for JSON text frames.
type Sent struct {
	Binary bool
	Data   []byte
}

// Type returns the "type" field of a text frame.
func (s Sent) Type() string {
	if s.Binary {
		return ""
	}
	var msg struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(s.Data, &msg)
	return msg.Type
}

// Field returns a string field of a text frame.
func (s Sent) Field(name string) string {
	if s.Binary {
		return ""
	}
	var msg map[string]any
	_ = json.Unmarshal(s.Data, &msg)
	v, _ := msg[name].(string)
	return v
}

// Conn is an in-memory client connection that records every outbound frame.
type Conn struct {
	mu      sync.Mutex
	sent    []Sent
	notify  chan struct{}
	closed  atomic.Bool
	closes  atomic.Int32
	failErr error
	failFn  func(Sent) error
}

func NewConn() *Conn {
	return &Conn{notify: make(chan struct{}, 1)}
}

func (c *Conn) SendText(data []byte) error {
	return c.send(Sent{Data: append([]byte(nil), data...)})
}

func (c *Conn) SendBinary(data []byte) error {
	return c.send(Sent{Binary: true, Data: append([]byte(nil), data...)})
}

func (c *Conn) send(msg Sent) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	if c.failErr != nil {
		err := c.failErr
		c.mu.Unlock()
		return err
	}
	if c.failFn != nil {
		if err := c.failFn(msg); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *Conn) Close() error {
	c.closes.Add(1)
	c.closed.Store(true)
	return nil
}

func (c *Conn) Closed() bool { return c.closed.Load() }

// CloseCalls counts Close invocations.
func (c *Conn) CloseCalls() int { return int(c.closes.Load()) }

// FailWith makes every later send return err.
func (c *Conn) FailWith(err error) {
	c.mu.Lock()
	c.failErr = err
	c.mu.Unlock()
}

// FailWhen makes a send fail when fn returns an error.
func (c *Conn) FailWhen(fn func(Sent) error) {
	c.mu.Lock()
	c.failFn = fn
	c.mu.Unlock()
}

func (c *Conn) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// WaitFor polls until cond holds for the recorded frames or timeout passes.
func (c *Conn) WaitFor(timeout time.Duration, cond func([]Sent) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if cond(c.Sent()) {
			return true
		}
		select {
		case <-c.notify:
		case <-time.After(5 * time.Millisecond):
		case <-deadline.C:
			return cond(c.Sent())
		}
	}
}
