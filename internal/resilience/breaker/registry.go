package breaker

import (
	"sort"
	"sync"

	"mediacast/internal/pkg/clock"
)

// Registry resolves circuit breakers by dependency name, creating them
// lazily on first use. Breakers live for the process lifetime.
//
// All methods are safe for concurrent use.
type Registry struct {
	clock clock.Clock

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty breaker registry.
func NewRegistry(clk clock.Clock) *Registry {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	return &Registry{
		clock:    clk,
		breakers: make(map[string]*Breaker),
	}
}

// GetOrCreate returns the breaker for the named dependency, creating it on
// first use. Repeated calls with the same name return the same instance.
//
// An optional config applies only at creation; it is ignored when the
// breaker already exists.
func (r *Registry) GetOrCreate(name string, cfg ...Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	c := DefaultConfig()
	if len(cfg) > 0 {
		c = cfg[0]
	}
	b := New(name, c, r.clock)
	r.breakers[name] = b
	return b
}

// Get returns the breaker for the named dependency, or nil if none exists.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakers[name]
}

// Names returns the names of all registered breakers in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResetAll resets every registered breaker to its initial closed state.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.breakers {
		b.Reset()
	}
}
