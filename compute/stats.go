package compute

import "sync/atomic"

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Local     int64
	Offloaded int64
	Fallbacks int64
	Timeouts  int64
}

// StatsReporter is implemented by providers that count how they served
// their requests.
type StatsReporter interface {
	Stats() StatsSnapshot
}

// Stats counts how Offloaded served its requests.
type Stats struct {
	local     atomic.Int64
	offloaded atomic.Int64
	fallbacks atomic.Int64
	timeouts  atomic.Int64
}

func (s *Stats) recordLocal() {
	s.local.Add(1)
}

func (s *Stats) recordOffloaded() {
	s.offloaded.Add(1)
}

func (s *Stats) recordFallback(timedOut bool) {
	s.fallbacks.Add(1)
	if timedOut {
		s.timeouts.Add(1)
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Local:     s.local.Load(),
		Offloaded: s.offloaded.Load(),
		Fallbacks: s.fallbacks.Load(),
		Timeouts:  s.timeouts.Load(),
	}
}
