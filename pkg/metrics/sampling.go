package metrics

import (
	"math"
	"slices"
	"sync/atomic"
)

// SamplingObserver thins out high-volume events. Events named in the sampled
// set are forwarded once every round(1/rate) occurrences; a zero rate drops
// them. Everything else passes through.
type SamplingObserver struct {
	inner   Observer
	sampled []string
	every   uint64
	seen    atomic.Uint64
}

func NewSamplingObserver(inner Observer, rate float64, names ...string) *SamplingObserver {
	return &SamplingObserver{inner: inner, sampled: names, every: sampleInterval(rate)}
}

// sampleInterval maps a rate in [0,1] to "keep one in n"; 0 means keep none.
func sampleInterval(rate float64) uint64 {
	switch {
	case rate <= 0 || math.IsNaN(rate):
		return 0
	case rate >= 1:
		return 1
	default:
		return max(uint64(math.Round(1/rate)), 1)
	}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if !slices.Contains(s.sampled, ev.Name) {
		s.inner.RecordEvent(ev)
		return
	}
	switch s.every {
	case 0:
	case 1:
		s.inner.RecordEvent(ev)
	default:
		if s.seen.Add(1)%s.every == 0 {
			s.inner.RecordEvent(ev)
		}
	}
}
