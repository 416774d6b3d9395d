package fallback

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"mediacast/internal/resilience/errclass"
)

// transient reports whether a failure class is worth papering over with a
// previously known-good or static result. Validation, authentication, and
// configuration failures are not: serving stale data would mask a bug.
func transient(c errclass.Classification) bool {
	switch c.Class {
	case errclass.ClassNetwork, errclass.ClassTimeout, errclass.ClassRateLimit,
		errclass.ClassServiceUnavailable, errclass.ClassCircuitOpen:
		return true
	default:
		return false
	}
}

// errCacheMiss signals that the cache holds no entry for the dependency.
var errCacheMiss = errors.New("no cached result")

// CachedResult serves the most recent successful payload recorded for a
// dependency, held in a bounded LRU cache.
type CachedResult struct {
	cache *lru.Cache[string, any]
}

// NewCachedResult creates a cached-result strategy with the given capacity.
func NewCachedResult(capacity int) (*CachedResult, error) {
	c, err := lru.New[string, any](capacity)
	if err != nil {
		return nil, fmt.Errorf("create fallback cache: %w", err)
	}
	return &CachedResult{cache: c}, nil
}

// Store records a successful payload for later use as a fallback.
// Call sites record the latest good result after each genuine success.
func (s *CachedResult) Store(dependency string, value any) {
	s.cache.Add(dependency, value)
}

// Name implements Strategy.
func (s *CachedResult) Name() string { return "cached_result" }

// Applies implements Strategy. Cached payloads substitute only for
// transient failures.
func (s *CachedResult) Applies(c errclass.Classification) bool { return transient(c) }

// Execute implements Strategy.
func (s *CachedResult) Execute(_ context.Context, dependency string, _ error) (Result, error) {
	v, ok := s.cache.Get(dependency)
	if !ok {
		return Result{}, errCacheMiss
	}
	return Result{Value: v}, nil
}

// StaticResult serves a fixed precomputed payload.
type StaticResult struct {
	value any
}

// NewStaticResult creates a static-result strategy serving the given value.
func NewStaticResult(value any) *StaticResult {
	return &StaticResult{value: value}
}

// Name implements Strategy.
func (s *StaticResult) Name() string { return "static_result" }

// Applies implements Strategy.
func (s *StaticResult) Applies(c errclass.Classification) bool { return transient(c) }

// Execute implements Strategy.
func (s *StaticResult) Execute(_ context.Context, _ string, _ error) (Result, error) {
	return Result{Value: s.value}, nil
}

// DegradedMode flips a shared feature flag to a degraded mode and serves a
// marker value. The owning component polls the flag to adjust behavior
// (for example, skipping enrichment while the summarizer is down).
type DegradedMode struct {
	flag  *atomic.Bool
	value any
}

// NewDegradedMode creates a degraded-mode strategy around the given flag.
func NewDegradedMode(flag *atomic.Bool, value any) *DegradedMode {
	return &DegradedMode{flag: flag, value: value}
}

// Name implements Strategy.
func (s *DegradedMode) Name() string { return "degraded_mode" }

// Applies implements Strategy. Degrading a whole feature is reserved for
// failures at high severity or worse.
func (s *DegradedMode) Applies(c errclass.Classification) bool {
	return transient(c) && c.Severity >= errclass.SeverityHigh
}

// Execute implements Strategy.
func (s *DegradedMode) Execute(_ context.Context, _ string, _ error) (Result, error) {
	s.flag.Store(true)
	return Result{Value: s.value}, nil
}

// UnavailableNotice is the explicit sentinel served when a dependency is
// down and no better substitute exists. Callers translate it into a
// user-facing "temporarily unavailable" response.
type UnavailableNotice struct {
	Dependency string
	Reason     string
}

// Unavailable serves an UnavailableNotice for any failure class.
type Unavailable struct{}

// NewUnavailable creates an unavailable-sentinel strategy.
func NewUnavailable() *Unavailable {
	return &Unavailable{}
}

// Name implements Strategy.
func (s *Unavailable) Name() string { return "unavailable" }

// Applies implements Strategy. The sentinel is a catch-all.
func (s *Unavailable) Applies(_ errclass.Classification) bool { return true }

// Execute implements Strategy.
func (s *Unavailable) Execute(_ context.Context, dependency string, cause error) (Result, error) {
	return Result{Value: UnavailableNotice{
		Dependency: dependency,
		Reason:     cause.Error(),
	}}, nil
}
