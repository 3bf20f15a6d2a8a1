// Package counterpool implements a per-field pool of sparse counters
// with an asynchronous janitor that recycles used counters: clearing a
// multi-megabyte counter and allocating a fresh one are both expensive,
// so the pool amortizes both across requests instead of paying the
// cost on every facet query.
package counterpool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sparsefacet/engine/pkg/collab"
	"github.com/sparsefacet/engine/pkg/sparsecounter"
)

// State describes where a pooled counter sits in its recycling
// lifecycle.
type State int

const (
	// Empty holds a zeroed counter ready for any field query.
	Empty State = iota
	// Filled holds a counter whose prior contents were cached under a
	// content token for reuse by a matching follow-up request.
	Filled
	// Dirty holds a released counter that has not been cleared yet.
	Dirty
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Filled:
		return "filled"
	case Dirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// Handle is a leased counter, returned by Acquire and consumed by
// Release. The structure key it was built against travels with it so
// Release can detect a structure change that happened while the
// counter was checked out.
type Handle struct {
	Counter      *sparsecounter.SparseCounter
	structureKey uint64
}

type entry struct {
	counter *sparsecounter.SparseCounter
	state   State
	token   string
	seq     uint64
}

// Factory builds a brand new counter for the given structure key, when
// no pooled candidate is usable. It is the pool's only route to
// sparsecounter construction, so it is where variant selection (plain
// packed vector vs NPM) lives.
type Factory func(structureKey uint64) *sparsecounter.SparseCounter

// Pool is a per-field collection of interchangeable counters plus a
// janitor that reclaims DIRTY ones in the background.
type Pool struct {
	mu               sync.Mutex
	structureKey     uint64
	hasStructureKey  bool
	entries          []*entry
	maxPoolSize      int
	minEmptyCounters int
	seq              uint64

	factory  Factory
	executor collab.Executor // nil means clear inline during Release

	log *slog.Logger
}

// New builds a Pool. executor may be nil, meaning janitor work runs
// inline on the releasing goroutine (the "0 cleaning threads" case).
// log may be nil, in which case slog.Default() is used.
func New(maxPoolSize, minEmptyCounters int, executor collab.Executor, factory Factory, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		maxPoolSize:      maxPoolSize,
		minEmptyCounters: minEmptyCounters,
		factory:          factory,
		executor:         executor,
		log:              log.With("component", "counterpool"),
	}
}

// Acquire returns a counter usable under wantedKey, preferring in
// order: a FILLED counter tagged with cacheToken, any EMPTY counter,
// any DIRTY counter (cleared inline before return), then any other
// FILLED counter (also cleared inline). If the pool holds nothing
// usable, it builds a fresh counter via the pool's Factory.
//
// A structure-key change relative to the pool's current key drops
// every pooled counter before selection runs.
func (p *Pool) Acquire(wantedKey uint64, cacheToken string) *Handle {
	p.mu.Lock()

	if !p.hasStructureKey || wantedKey != p.structureKey {
		if p.hasStructureKey {
			p.log.Info("structure key changed, dropping pooled counters",
				"oldStructureKey", p.structureKey, "newStructureKey", wantedKey, "dropped", len(p.entries))
		}
		p.entries = nil
		p.structureKey = wantedKey
		p.hasStructureKey = true
	}

	idx := p.selectCandidate(cacheToken)
	if idx < 0 {
		p.mu.Unlock()
		return &Handle{Counter: p.factory(wantedKey), structureKey: wantedKey}
	}

	picked := p.entries[idx]
	p.entries = append(p.entries[:idx], p.entries[idx+1:]...)
	p.mu.Unlock()

	tokenMatched := picked.state == Filled && cacheToken != "" && picked.token == cacheToken
	if !tokenMatched && picked.state != Empty {
		// FILLED with the wrong token, or DIRTY: contents are not
		// reusable as-is.
		picked.counter.Clear()
	}
	return &Handle{Counter: picked.counter, structureKey: wantedKey}
}

// selectCandidate must be called with p.mu held. It returns the index
// of the best pooled entry for cacheToken, or -1 if none qualifies.
func (p *Pool) selectCandidate(cacheToken string) int {
	if cacheToken != "" {
		for i, e := range p.entries {
			if e.state == Filled && e.token == cacheToken {
				return i
			}
		}
	}
	for i, e := range p.entries {
		if e.state == Empty {
			return i
		}
	}
	for i, e := range p.entries {
		if e.state == Dirty {
			return i
		}
	}
	for i, e := range p.entries {
		if e.state == Filled {
			return i
		}
	}
	return -1
}

// Release returns h's counter to the pool, tagged FILLED(cacheToken) if
// cacheToken is non-empty, else DIRTY. If the pool's structure key has
// since changed, the counter is discarded instead. A janitor task is
// submitted (or run inline, if the pool has no executor) after every
// successful release.
func (p *Pool) Release(h *Handle, cacheToken string) {
	p.mu.Lock()
	if !p.hasStructureKey || h.structureKey != p.structureKey {
		p.mu.Unlock()
		return
	}

	p.seq++
	e := &entry{counter: h.Counter, seq: p.seq}
	if cacheToken != "" {
		e.state = Filled
		e.token = cacheToken
	} else {
		e.state = Dirty
	}
	p.entries = append(p.entries, e)
	p.mu.Unlock()

	p.runJanitor()
}

func (p *Pool) runJanitor() {
	if p.executor == nil {
		p.janitorTick()
		return
	}
	p.executor.Submit(func(ctx context.Context) { p.janitorTick() })
}

// janitorTick performs at most one bounded cleaning action: either a
// single eviction (pool over capacity) or a single DIRTY-to-EMPTY
// reclaim (pool under its minimum EMPTY target). It never does both in
// one invocation, which bounds the latency any one release can incur.
func (p *Pool) janitorTick() {
	p.mu.Lock()

	if len(p.entries) > p.maxPoolSize {
		evicted := p.evictOldest()
		p.mu.Unlock()
		if evicted {
			p.log.Debug("janitor evicted a pooled counter over capacity", "maxPoolSize", p.maxPoolSize)
		}
		return
	}

	emptyCount := 0
	dirtyIdx := -1
	for i, e := range p.entries {
		switch e.state {
		case Empty:
			emptyCount++
		case Dirty:
			if dirtyIdx < 0 || e.seq < p.entries[dirtyIdx].seq {
				dirtyIdx = i
			}
		}
	}

	if dirtyIdx < 0 || emptyCount >= p.minEmptyCounters {
		p.mu.Unlock()
		return
	}

	reclaim := p.entries[dirtyIdx]
	structureKeyAtRemoval := p.structureKey
	p.entries = append(p.entries[:dirtyIdx], p.entries[dirtyIdx+1:]...)
	p.mu.Unlock()

	p.log.Debug("janitor reclaiming a dirty counter", "emptyCount", emptyCount, "minEmptyCounters", p.minEmptyCounters)
	reclaim.counter.Clear()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.structureKey != structureKeyAtRemoval {
		// The structure changed while we were clearing outside the
		// lock; this counter is stale, let it be garbage collected.
		p.log.Debug("janitor discarding reclaimed counter after structure key change",
			"structureKeyAtRemoval", structureKeyAtRemoval, "currentStructureKey", p.structureKey)
		return
	}
	p.seq++
	reclaim.state = Empty
	reclaim.token = ""
	reclaim.seq = p.seq
	p.entries = append(p.entries, reclaim)
}

// evictOldest must be called with p.mu held, and with len(p.entries) >
// p.maxPoolSize already established by the caller. It drops exactly
// one entry: an EMPTY one if the pool already has at least
// minEmptyCounters of them, otherwise the oldest non-EMPTY one,
// otherwise the oldest entry overall. It reports whether an entry was
// actually dropped.
func (p *Pool) evictOldest() bool {
	emptyCount := 0
	for _, e := range p.entries {
		if e.state == Empty {
			emptyCount++
		}
	}

	preferEmpty := emptyCount >= p.minEmptyCounters

	victim := -1
	for i, e := range p.entries {
		isEmpty := e.state == Empty
		if preferEmpty != isEmpty {
			continue
		}
		if victim < 0 || e.seq < p.entries[victim].seq {
			victim = i
		}
	}
	if victim < 0 {
		for i, e := range p.entries {
			if victim < 0 || e.seq < p.entries[victim].seq {
				victim = i
			}
		}
	}
	if victim >= 0 {
		p.entries = append(p.entries[:victim], p.entries[victim+1:]...)
		return true
	}
	return false
}

// Len reports the number of counters currently held by the pool
// (EMPTY + FILLED + DIRTY), for tests and diagnostics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
