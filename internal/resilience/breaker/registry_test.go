package breaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"mediacast/internal/pkg/clock"
)

func TestRegistryGetOrCreateReturnsSameInstance(t *testing.T) {
	r := NewRegistry(nil)

	a := r.GetOrCreate("cdn")
	b := r.GetOrCreate("cdn")
	if a != b {
		t.Fatal("GetOrCreate returned different instances for the same name")
	}
}

func TestRegistryConfigAppliesOnlyAtCreation(t *testing.T) {
	r := NewRegistry(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	custom := Config{FailureThreshold: 1, MinRequests: 1}
	b := r.GetOrCreate("speech", custom)

	// A later call with a different config must not replace the breaker.
	same := r.GetOrCreate("speech", DefaultConfig())
	if b != same {
		t.Fatal("second GetOrCreate with config replaced the breaker")
	}

	// The original config is in effect: a single failure trips it.
	_, _ = b.Execute(context.Background(), fail)
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open under custom config", got)
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(nil)

	if got := r.Get("missing"); got != nil {
		t.Fatalf("Get for unknown name = %v, want nil", got)
	}
	created := r.GetOrCreate("extractor")
	if got := r.Get("extractor"); got != created {
		t.Fatal("Get returned a different instance than GetOrCreate")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"speech", "cdn", "extractor"} {
		r.GetOrCreate(name)
	}

	got := r.Names()
	want := []string{"cdn", "extractor", "speech"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestRegistryResetAll(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	r := NewRegistry(clk)

	b := r.GetOrCreate("summarizer", Config{FailureThreshold: 1, MinRequests: 1})
	_, _ = b.Execute(context.Background(), fail)
	if b.State() != StateOpen {
		t.Fatal("setup: breaker should be open")
	}

	r.ResetAll()
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after ResetAll = %v, want closed", got)
	}
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 32
	results := make([]*Breaker, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			results[i] = r.GetOrCreate("video-metadata")
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate produced multiple instances")
		}
	}
}
