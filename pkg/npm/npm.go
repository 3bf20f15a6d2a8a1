// Package npm implements the N-Plane Mutable counter vector:
// a compressed integer vector where each slot has a statically-known
// maximum, exploiting a long-tailed distribution of maxima by splitting
// each counter across bit-planes so storage for rare large values is
// allocated only for the few slots that need it.
package npm

import (
	"fmt"

	"github.com/sparsefacet/engine/pkg/layout"
	"github.com/sparsefacet/engine/pkg/packedvector"
)

// Variant selects the plane implementation.
type Variant int

const (
	VariantSplit Variant = iota
	VariantSplitRank
	VariantShift
)

func (v Variant) String() string {
	switch v {
	case VariantSplit:
		return "split"
	case VariantSplitRank:
		return "split-rank"
	case VariantShift:
		return "shift"
	default:
		return "unknown"
	}
}

// Options configures plane layout and dispatch.
type Options struct {
	Variant          Variant
	MaxPlanes        int
	CollapseFraction float64
	OverflowBucket   int
}

// DefaultOptions mirrors pkg/layout's defaults with the split variant,
// the cheapest to build.
func DefaultOptions() Options {
	lo := layout.DefaultOptions()
	return Options{
		Variant:          VariantSplit,
		MaxPlanes:        lo.MaxPlanes,
		CollapseFraction: lo.CollapseFraction,
		OverflowBucket:   lo.OverflowBucket,
	}
}

// NPM is the multi-plane mutable counter vector.
type NPM struct {
	n       int
	planes  []plane
	cumBits []uint
}

// New constructs an NPM sized to len(maxima), where maxima[i] is the
// statically-known upper bound counter i may ever reach.
func New(maxima []uint64, opts Options) (*NPM, error) {
	n := len(maxima)

	h := layout.Histogram(func(i int) int { return packedvector.BitsRequired(maxima[i]) }, n)
	z := layout.Cumulative(h)

	descriptors, err := layout.Plan(z, layout.Options{
		MaxPlanes:        opts.MaxPlanes,
		CollapseFraction: opts.CollapseFraction,
		OverflowBucket:   opts.OverflowBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("npm: %w", err)
	}

	if len(descriptors) == 0 {
		if n == 0 {
			return &NPM{}, nil
		}
		// Every slot's maximum is 0: counters that can never be
		// incremented still need a readable/writable (always-zero)
		// plane 0, since Get indexes plane 0 directly by global index.
		descriptors = []layout.Plane{{ValueBits: 1, SlotCount: n, HasOverflow: false, CumulativeMaxBit: 1}}
	}

	planes := make([]plane, len(descriptors))
	cumBits := make([]uint, len(descriptors))
	var run uint

	for p, d := range descriptors {
		slotCount := d.SlotCount
		if p == 0 {
			// Plane 0 is always addressed directly by the global slot
			// index, so it must span every slot regardless of how many
			// actually touch bit 1.
			slotCount = n
		}

		pl, err := newPlane(opts.Variant, slotCount, d.ValueBits, d.HasOverflow, d.OverflowBucket)
		if err != nil {
			return nil, fmt.Errorf("npm: plane %d: %w", p, err)
		}
		planes[p] = pl

		run += d.ValueBits
		cumBits[p] = run
	}

	m := &NPM{n: n, planes: planes, cumBits: cumBits}
	m.populateOverflow(maxima)
	return m, nil
}

func newPlane(variant Variant, n int, bits uint, hasOverflow bool, overflowBucket int) (plane, error) {
	switch variant {
	case VariantSplit:
		if overflowBucket <= 0 {
			overflowBucket = layout.DefaultOptions().OverflowBucket
		}
		return newSplitPlane(n, bits, hasOverflow, overflowBucket)
	case VariantSplitRank:
		return newSplitRankPlane(n, bits, hasOverflow)
	case VariantShift:
		return newShiftPlane(n, bits, hasOverflow)
	default:
		return nil, fmt.Errorf("unknown variant %d", variant)
	}
}

// populateOverflow makes a single pass over maxima: for each slot, walk
// planes in order, setting the overflow bit whenever the slot also
// participates in the next plane. Because slots
// are visited in increasing index order, each plane's set of
// participating positions fills 0..slotCount-1 in exactly rank order —
// no rank() call is needed yet (the cache doesn't exist), just a running
// counter per plane.
func (m *NPM) populateOverflow(maxima []uint64) {
	if len(m.planes) == 0 {
		return
	}

	counters := make([]int, len(m.planes))
	for i := 0; i < m.n; i++ {
		bitsNeeded := packedvector.BitsRequired(maxima[i])
		pos := i

		for p := 0; p < len(m.planes); p++ {
			pl := m.planes[p]
			if !pl.hasOverflow() {
				break
			}
			if bitsNeeded <= int(m.cumBits[p]) {
				break
			}

			pl.setOverflowBit(pos)

			if p+1 >= len(m.planes) {
				break
			}
			next := counters[p+1]
			counters[p+1]++
			pos = next
		}
	}

	for _, pl := range m.planes {
		pl.buildOverflowCache()
	}
}

// Len returns N, the number of logical counters.
func (m *NPM) Len() int { return m.n }

// NumPlanes returns the number of bit-planes chosen for this layout.
func (m *NPM) NumPlanes() int { return len(m.planes) }

// Get returns counter i's current logical value.
func (m *NPM) Get(i int) uint64 {
	var value uint64
	var shift uint
	pos := i

	for _, pl := range m.planes {
		value |= pl.getValue(pos) << shift
		shift += pl.valueBits()

		if !pl.hasOverflow() || !pl.overflowBit(pos) {
			return value
		}
		pos = pl.rank(pos)
	}
	return value
}

// Set stores v as counter i's logical value. Callers must ensure v does
// not exceed the slot's configured maximum; this is not checked, and
// behavior is undefined if it is violated.
func (m *NPM) Set(i int, v uint64) {
	pos := i

	for _, pl := range m.planes {
		pl.setValue(pos, v)
		v >>= pl.valueBits()

		if !pl.hasOverflow() || !pl.overflowBit(pos) {
			return
		}
		pos = pl.rank(pos)
	}
}

// Inc increments counter i by one and returns its value prior to the
// increment. Each plane touched does O(1) work: one packed-slot
// increment and, if it wrapped, one rank() read (never a rank
// mutation). Incrementing past the slot's configured maximum wraps
// silently — callers must consult the maxima provider first.
func (m *NPM) Inc(i int) uint64 {
	old := m.Get(i)

	pos := i
	for _, pl := range m.planes {
		v := pl.incValue(pos)
		if v != maxValue(pl.valueBits()) {
			return old
		}
		if !pl.hasOverflow() || !pl.overflowBit(pos) {
			return old
		}
		pos = pl.rank(pos)
	}
	return old
}

// Clear resets every counter to zero. split and split-rank planes clear
// in O(words) via their packed value vector's Clear, leaving overflow
// bitmaps untouched (they depend on the maxima, not on counts); shift
// planes must iterate to preserve their interleaved overflow bit.
func (m *NPM) Clear() {
	for _, pl := range m.planes {
		pl.clearValues()
	}
}
