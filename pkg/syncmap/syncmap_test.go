package syncmap

import (
	"sync"
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	m := New[string, int]()

	if _, ok := m.Get("a"); ok {
		t.Fatal("expected miss on empty map")
	}

	m.Put("a", 1)
	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v, want 1, true", v, ok)
	}

	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestLoadOrCreateRunsOnceUnderRace(t *testing.T) {
	m := New[string, int]()

	var calls int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.LoadOrCreate("k", func() int {
				mu.Lock()
				calls++
				mu.Unlock()
				return 42
			})
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("create ran %d times, want 1", calls)
	}
	v, ok := m.Get("k")
	if !ok || v != 42 {
		t.Fatalf("Get(k) = %v, %v, want 42, true", v, ok)
	}
}

func TestLen(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 5; i++ {
		m.Put(i, i*i)
	}
	if got := m.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
}
