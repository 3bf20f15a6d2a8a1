package counterpool

import (
	"context"
	"sync"
	"testing"

	"github.com/sparsefacet/engine/pkg/packedvector"
	"github.com/sparsefacet/engine/pkg/sparsecounter"
)

func newTestFactory(n int, bits uint) Factory {
	return func(structureKey uint64) *sparsecounter.SparseCounter {
		pv, err := packedvector.New(n, bits)
		if err != nil {
			panic(err)
		}
		return sparsecounter.New(pv, pv, sparsecounter.Options{
			N:            n,
			Fraction:     0.5,
			StructureKey: structureKey,
		})
	}
}

func TestAcquireBuildsFreshCounterWhenPoolEmpty(t *testing.T) {
	p := New(2, 1, nil, newTestFactory(100, 8), nil)

	h := p.Acquire(1, "")
	if h.Counter == nil {
		t.Fatal("expected a counter")
	}
	if got := h.Counter.Get(0); got != 0 {
		t.Fatalf("fresh counter Get(0) = %d, want 0", got)
	}
}

func TestScenarioPoolIdempotence(t *testing.T) {
	p := New(2, 1, nil, newTestFactory(100, 8), nil)

	h := p.Acquire(1, "")
	h.Counter.Inc(7)
	h.Counter.Inc(7)
	want := h.Counter.Get(7)

	p.Release(h, "q1")

	h2 := p.Acquire(1, "q1")
	if got := h2.Counter.Get(7); got != want {
		t.Fatalf("reacquired counter Get(7) = %d, want %d (unchanged since release)", got, want)
	}
}

func TestScenarioPoolTokenReuse(t *testing.T) {
	// poolSize=2, cleaningThreads=0 (inline janitor).
	p := New(2, 1, nil, newTestFactory(10, 8), nil)

	h := p.Acquire(42, "")
	h.Counter.Inc(3)
	p.Release(h, "q1")

	h2 := p.Acquire(42, "q1")
	if got := h2.Counter.Get(3); got != 1 {
		t.Fatalf("Get(3) = %d, want 1", got)
	}
}

func TestReleaseWithoutTokenMarksDirtyAndJanitorReclaims(t *testing.T) {
	p := New(2, 1, nil, newTestFactory(10, 8), nil)

	h := p.Acquire(1, "")
	h.Counter.Inc(0)
	p.Release(h, "") // DIRTY; inline janitor should clear it toward EMPTY

	h2 := p.Acquire(1, "")
	if got := h2.Counter.Get(0); got != 0 {
		t.Fatalf("reclaimed counter should have been cleared, Get(0) = %d", got)
	}
}

func TestStructureKeyChangeDropsPoolContents(t *testing.T) {
	p := New(2, 1, nil, newTestFactory(10, 8), nil)

	h := p.Acquire(1, "")
	h.Counter.Inc(0)
	p.Release(h, "q1")

	if p.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 before structure change", p.Len())
	}

	// A different structure key must drop everything pooled.
	h2 := p.Acquire(2, "q1")
	if got := h2.Counter.Get(0); got != 0 {
		t.Fatalf("counter under new structure key should be fresh, Get(0) = %d", got)
	}
}

func TestReleaseAfterStructureKeyChangeDiscardsCounter(t *testing.T) {
	p := New(2, 1, nil, newTestFactory(10, 8), nil)

	h := p.Acquire(1, "")
	p.Acquire(2, "") // bumps the pool's structure key out from under h

	p.Release(h, "q1")
	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0: stale-key release must be discarded", p.Len())
	}
}

func TestBoundaryMaxPoolSizeZeroAlwaysAllocatesAndDiscards(t *testing.T) {
	p := New(0, 0, nil, newTestFactory(10, 8), nil)

	h1 := p.Acquire(1, "")
	p.Release(h1, "")
	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 with maxPoolSize=0", p.Len())
	}

	h2 := p.Acquire(1, "")
	if h2.Counter == h1.Counter {
		t.Fatal("expected a freshly allocated counter, not the discarded one")
	}
}

func TestJanitorRunsViaExecutor(t *testing.T) {
	exec := newSyncExecutor()
	p := New(2, 1, exec, newTestFactory(10, 8), nil)

	h := p.Acquire(1, "")
	h.Counter.Inc(0)
	p.Release(h, "")

	exec.drain()

	h2 := p.Acquire(1, "")
	if got := h2.Counter.Get(0); got != 0 {
		t.Fatalf("janitor via executor should have cleared the counter, Get(0) = %d", got)
	}
}

// syncExecutor collects submitted tasks and runs them only when drained,
// letting a test observe state both before and after janitor work runs.
type syncExecutor struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context)
}

func newSyncExecutor() *syncExecutor { return &syncExecutor{} }

func (e *syncExecutor) Submit(task func(ctx context.Context)) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
}

func (e *syncExecutor) drain() {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()
	for _, task := range tasks {
		task(context.Background())
	}
}
