package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards one in every 1/rate events. Names listed in
// always bypass sampling so failures are never thinned out.
type SamplingObserver struct {
	inner   Observer
	every   uint64
	always  map[string]bool
	counter atomic.Uint64
}

func NewSamplingObserver(inner Observer, rate float64, always ...string) *SamplingObserver {
	rate = math.Max(0, math.Min(1, rate))
	var every uint64
	if rate > 0 {
		every = max(uint64(math.Round(1/rate)), 1)
	}
	keep := make(map[string]bool, len(always))
	for _, name := range always {
		keep[name] = true
	}
	return &SamplingObserver{inner: inner, every: every, always: keep}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if s.always[ev.Name] || s.every == 1 {
		s.inner.RecordEvent(ev)
		return
	}
	if s.every == 0 {
		return
	}
	if s.counter.Add(1)%s.every == 0 {
		s.inner.RecordEvent(ev)
	}
}
