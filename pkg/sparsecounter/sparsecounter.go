// Package sparsecounter implements a sparse counter: a
// read-through/write-through wrapper over a mutable integer vector (a
// packedvector.Vector or an npm.NPM) that tracks the set of distinct
// touched indices. While the number of distinct touches stays below a
// configured capacity, iteration and clear cost scale with touches, not
// with N; once the tracker fills up it is abandoned and the counter
// falls back to scanning the whole vector.
package sparsecounter

import (
	"encoding/binary"
	"hash/fnv"
	"log/slog"
)

// Vector is the minimal capability a sparse counter needs from its
// backing store. Both packedvector.Vector and npm.NPM satisfy it.
type Vector interface {
	Get(i int) uint64
	Set(i int, v uint64)
	Clear()
}

// Incrementable is the optional "increment by one" capability, modeled
// separately from the base vector so a plain packed vector can fall
// back to get+set while NPM uses its dedicated cascade. A backing
// store that doesn't implement it is incremented via Get+Set.
type Incrementable interface {
	Inc(i int) uint64
}

// Callback is invoked by Iterate for each qualifying index.
type Callback func(i int, count uint64)

// SparseCounter wraps a Vector with bounded updated-index tracking.
type SparseCounter struct {
	v    Vector
	incr Incrementable // nil if v doesn't implement Incrementable

	n        int
	capacity int

	touched        []int
	exceeded       bool
	sparseDisabled bool // fraction<=0 or capacity==0: always non-sparse

	structureKey uint64
	contentKey   *string

	maxCountsTracked uint64 // 0 = unlimited
	truncated        bool

	log *slog.Logger
}

// Options configures a SparseCounter at construction.
type Options struct {
	// N is the logical length of the backing vector.
	N int
	// Fraction is the sparse tracker's capacity as a fraction of N
	// (config.Default uses 0.08; no default is applied here).
	// Fraction<=0 disables sparse tracking entirely.
	Fraction float64
	// MaxCountsTracked optionally caps stored counts; 0 means
	// unlimited.
	MaxCountsTracked uint64
	// StructureKey fingerprints the construction parameters of v (N,
	// maxCountForAny, bit-width choice, fraction, ...) so a pool can
	// tell interchangeable counters apart. Callers that don't need pool
	// interchangeability may leave this zero.
	StructureKey uint64
	// Log receives sparse→non-sparse transition notices. Nil means
	// slog.Default().
	Log *slog.Logger
}

// New wraps v in a SparseCounter. If incr is non-nil it is used for the
// fast increment path once the tracker is exceeded; it is typically v
// itself, type-asserted to Incrementable by the caller.
func New(v Vector, incr Incrementable, opts Options) *SparseCounter {
	capacity := int(float64(opts.N) * opts.Fraction)
	disabled := opts.Fraction <= 0 || capacity <= 0

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "sparsecounter")

	return &SparseCounter{
		v:                v,
		incr:             incr,
		n:                opts.N,
		capacity:         capacity,
		exceeded:         disabled,
		sparseDisabled:   disabled,
		structureKey:     opts.StructureKey,
		maxCountsTracked: opts.MaxCountsTracked,
		log:              log,
	}
}

// StructureKey returns the fingerprint this counter was constructed
// with.
func (s *SparseCounter) StructureKey() uint64 { return s.structureKey }

// ContentKey returns the current content key, or nil if unset.
func (s *SparseCounter) ContentKey() *string { return s.contentKey }

// SetContentKey tags this counter's contents as cacheable under key.
func (s *SparseCounter) SetContentKey(key string) { s.contentKey = &key }

// ClearContentKey removes the content key.
func (s *SparseCounter) ClearContentKey() { s.contentKey = nil }

// Truncated reports whether maxCountsTracked capped at least one
// counter's value.
func (s *SparseCounter) Truncated() bool { return s.truncated }

// Exceeded reports whether the sparse tracker has been abandoned.
func (s *SparseCounter) Exceeded() bool { return s.exceeded }

// Inc increments counter i by one.
func (s *SparseCounter) Inc(i int) {
	if s.exceeded {
		s.incBacking(i)
		return
	}

	old := s.v.Get(i)
	if s.capped(old) {
		return
	}

	s.v.Set(i, old+1)
	if old == 0 {
		if len(s.touched) >= s.capacity {
			// U is already full: this touch would overflow it, so the
			// tracker is abandoned without recording i.
			s.exceeded = true
			s.log.Debug("sparse tracker exceeded capacity, falling back to dense scanning",
				"structureKey", s.structureKey, "n", s.n, "capacity", s.capacity)
		} else {
			s.touched = append(s.touched, i)
		}
	}
}

func (s *SparseCounter) incBacking(i int) {
	if s.maxCountsTracked > 0 && s.capped(s.v.Get(i)) {
		return
	}
	if s.incr != nil {
		s.incr.Inc(i)
		return
	}
	s.v.Set(i, s.v.Get(i)+1)
}

func (s *SparseCounter) capped(current uint64) bool {
	if s.maxCountsTracked == 0 || current < s.maxCountsTracked {
		return false
	}
	s.truncated = true
	return true
}

// Iterate invokes cb for every index in [from,to) whose count is at
// least minCount. It returns true iff the sparse path (scanning the
// touched-index list rather than the whole range) was taken.
func (s *SparseCounter) Iterate(from, to int, minCount uint64, cb Callback) bool {
	if !s.exceeded {
		for _, i := range s.touched {
			if i < from || i >= to {
				continue
			}
			if c := s.v.Get(i); c >= minCount {
				cb(i, c)
			}
		}
		return true
	}

	for i := from; i < to; i++ {
		if c := s.v.Get(i); c >= minCount {
			cb(i, c)
		}
	}
	return false
}

// Clear resets every tracked counter to zero and, for the sparse path,
// resets the tracker's exceeded flag — unless sparse tracking was
// disabled at construction, in which case it remains permanently
// non-sparse.
func (s *SparseCounter) Clear() {
	if !s.exceeded {
		for _, i := range s.touched {
			s.v.Set(i, 0)
		}
	} else {
		s.v.Clear()
	}
	s.touched = s.touched[:0]
	s.truncated = false
	s.exceeded = s.sparseDisabled
}

// HashStructureKey fingerprints a set of construction parameters into a
// structure key. Exposed so callers (typically a counter pool) can
// compute a wantedKey to compare against a pooled
// counter's StructureKey without depending on sparsecounter internals.
func HashStructureKey(n int, maxBits int, variant string, fraction float64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(maxBits))
	h.Write(buf[:])
	h.Write([]byte(variant))
	binary.LittleEndian.PutUint64(buf[:], uint64(fraction*1e9))
	h.Write(buf[:])
	return h.Sum64()
}
