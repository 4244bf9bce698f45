package metrics

import (
	"sync"
	"sync/atomic"
)

// AsyncObserver hands events to a background goroutine so the session hot
// path never blocks on Prometheus or the logger. A full buffer drops the
// event and counts it.
type AsyncObserver struct {
	inner    Observer
	events   chan MetricsEvent
	quit     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64
}

func NewAsyncObserver(inner Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		inner:    inner,
		events:   make(chan MetricsEvent, buffer),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go a.forward()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	if a == nil {
		return
	}
	select {
	case <-a.quit:
		return
	default:
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
}

// Dropped counts events lost to a full buffer.
func (a *AsyncObserver) Dropped() int64 { return a.dropped.Load() }

// Close flushes whatever is buffered and stops the forwarder. Events recorded
// concurrently with Close may be discarded.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.stopOnce.Do(func() { close(a.quit) })
	<-a.finished
}

func (a *AsyncObserver) forward() {
	defer close(a.finished)
	for {
		select {
		case ev := <-a.events:
			a.inner.RecordEvent(ev)
		case <-a.quit:
			for {
				select {
				case ev := <-a.events:
					a.inner.RecordEvent(ev)
				default:
					return
				}
			}
		}
	}
}
