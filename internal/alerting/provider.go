package alerting

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Record is one historical dependency operation.
type Record struct {
	Dependency string
	Success    bool
	Duration   time.Duration
	Timestamp  time.Time
}

// MetricsProvider supplies historical per-operation records for windowed
// aggregation.
type MetricsProvider interface {
	// Dependencies returns the names of every dependency with records.
	Dependencies(ctx context.Context) ([]string, error)

	// Records returns the records for a dependency with Timestamp at or
	// after since.
	Records(ctx context.Context, dependency string, since time.Time) ([]Record, error)
}

// RecordStore is an in-memory MetricsProvider fed by the resilience layer.
// It implements resilience.Recorder so every guarded call lands here.
//
// All methods are safe for concurrent use.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string][]Record),
	}
}

// Record implements resilience.Recorder.
func (s *RecordStore) Record(dependency string, success bool, duration time.Duration, at time.Time) {
	s.Append(Record{
		Dependency: dependency,
		Success:    success,
		Duration:   duration,
		Timestamp:  at,
	})
}

// Append adds a record. Records are assumed to arrive roughly in time
// order; Records filters by timestamp, so slight disorder is harmless.
func (s *RecordStore) Append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Dependency] = append(s.records[r.Dependency], r)
}

// Dependencies implements MetricsProvider.
func (s *RecordStore) Dependencies(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Records implements MetricsProvider.
func (s *RecordStore) Records(_ context.Context, dependency string, since time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records[dependency] {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Prune drops records older than the cutoff and returns how many were
// removed.
func (s *RecordStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for dep, recs := range s.records {
		kept := recs[:0]
		for _, r := range recs {
			if r.Timestamp.After(cutoff) {
				kept = append(kept, r)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.records, dep)
		} else {
			s.records[dep] = kept
		}
	}
	return removed
}
