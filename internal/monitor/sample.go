package monitor

import (
	"sync"
	"time"

	"mediacast/internal/resilience/breaker"
)

// HealthStatus is the derived health of one dependency.
type HealthStatus string

const (
	StatusUnknown   HealthStatus = "unknown"
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// gaugeValue maps a status onto the dependency health gauge.
func (s HealthStatus) gaugeValue() float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 2
	case StatusUnhealthy:
		return 3
	default:
		return 0
	}
}

// worse reports whether s is a worse status than other.
func (s HealthStatus) worse(other HealthStatus) bool {
	rank := func(h HealthStatus) int {
		switch h {
		case StatusHealthy:
			return 0
		case StatusDegraded:
			return 1
		case StatusUnhealthy:
			return 2
		default:
			return -1
		}
	}
	return rank(s) > rank(other)
}

// Sample is one health monitor observation of a dependency.
type Sample struct {
	Dependency      string
	Status          HealthStatus
	State           breaker.State
	FailureCount    int
	SuccessCount    int
	RequestCount    int
	ErrorRate       float64
	SuccessRate     float64
	AvgResponseTime time.Duration
	OperationCount  int
	ResourceBytes   float64
	UptimeSeconds   float64
	LastError       string
	Timestamp       time.Time
}

// sampleStore holds per-dependency sample history with retention pruning.
type sampleStore struct {
	mu      sync.RWMutex
	samples map[string][]Sample
}

func newSampleStore() *sampleStore {
	return &sampleStore{samples: make(map[string][]Sample)}
}

func (s *sampleStore) append(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[sample.Dependency] = append(s.samples[sample.Dependency], sample)
}

// latest returns the most recent sample for a dependency.
func (s *sampleStore) latest(dependency string) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.samples[dependency]
	if len(history) == 0 {
		return Sample{}, false
	}
	return history[len(history)-1], true
}

// all returns a copy of every dependency's sample history.
func (s *sampleStore) all() map[string][]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Sample, len(s.samples))
	for dep, history := range s.samples {
		cp := make([]Sample, len(history))
		copy(cp, history)
		out[dep] = cp
	}
	return out
}

// prune drops samples older than the cutoff and returns how many were
// removed. A dependency whose entire history is stale ends up with no
// samples until the next tick records a fresh one.
func (s *sampleStore) prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for dep, history := range s.samples {
		kept := history[:0]
		for _, sample := range history {
			if !sample.Timestamp.Before(cutoff) {
				kept = append(kept, sample)
			} else {
				pruned++
			}
		}
		if len(kept) == 0 {
			delete(s.samples, dep)
			continue
		}
		s.samples[dep] = kept
	}
	return pruned
}
