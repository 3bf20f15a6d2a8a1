// Package layout implements the pure planning function that turns a
// bit-histogram of counter maxima into an ordered list of NPM plane
// descriptors. It holds no state of its own — matching pkg/retry's free
// functions over a plain Config, planning is a pure function over small
// fixed-size arrays, not a method on a stateful type.
package layout

import "fmt"

// Plane describes one bit-plane of an N-Plane Mutable counter vector.
type Plane struct {
	ValueBits        uint // b_p
	SlotCount        int  // n_p = Z[k], slots participating in this plane
	HasOverflow      bool // o_p
	OverflowBucket   int  // s_p, only meaningful for the split variant
	CumulativeMaxBit uint // c_p = sum_{q<=p} b_q
}

// Options tunes the planner.
type Options struct {
	// MaxPlanes bounds the number of emitted planes; once reached, all
	// remaining bits are folded into the final plane.
	MaxPlanes int

	// CollapseFraction: once Z[k]/Z[0] <= CollapseFraction, the
	// remaining bits are folded into a single final plane.
	CollapseFraction float64

	// OverflowBucket sizes the split variant's popcount cache buckets.
	// Ignored by split-rank/shift variants; callers may leave it 0 to
	// take the default.
	OverflowBucket int
}

// DefaultOptions returns the planner defaults used when a caller doesn't
// override them.
func DefaultOptions() Options {
	return Options{
		MaxPlanes:        8,
		CollapseFraction: 0.02,
		OverflowBucket:   64,
	}
}

// Histogram computes H[0..64) from a maxima provider: H[k] = count of
// slots whose maximum requires exactly k+1 bits.
func Histogram(bitsRequired func(i int) int, n int) [64]int {
	var h [64]int
	for i := 0; i < n; i++ {
		k := bitsRequired(i)
		if k == 0 {
			continue // a slot whose max is 0 needs no plane at all
		}
		h[k-1]++
	}
	return h
}

// Cumulative turns H into Z[0..65) where Z[k] = count of slots with
// max-bits >= k (1-indexed bit positions, Z[0] == total participating
// slots).
func Cumulative(h [64]int) [65]int {
	var z [65]int
	run := 0
	for k := 64; k >= 1; k-- {
		run += h[k-1]
		z[k] = run
	}
	z[0] = run
	return z
}

// Plan runs the layout algorithm over the zero-extended cumulative
// histogram Z and returns the ordered plane descriptors.
func Plan(z [65]int, opts Options) ([]Plane, error) {
	if opts.MaxPlanes <= 1 {
		return nil, fmt.Errorf("layout: MaxPlanes must be > 1, got %d", opts.MaxPlanes)
	}
	if opts.CollapseFraction <= 0 || opts.CollapseFraction > 1 {
		return nil, fmt.Errorf("layout: CollapseFraction must be in (0,1], got %v", opts.CollapseFraction)
	}
	bucket := opts.OverflowBucket
	if bucket <= 0 {
		bucket = DefaultOptions().OverflowBucket
	}

	maxBit := 0
	for k := 1; k <= 64; k++ {
		if z[k] > 0 {
			maxBit = k
		}
	}
	if maxBit == 0 {
		return nil, nil // no slot ever needs a bit: N=0 or all maxima are 0
	}

	var planes []Plane
	k := 1
	cum := uint(0)

	for k <= maxBit {
		// Terminator (b): plane budget exhausted, fold the remainder.
		if len(planes) == opts.MaxPlanes-1 {
			delta := maxBit - k + 1
			cum += uint(delta)
			planes = append(planes, Plane{
				ValueBits:        uint(delta),
				SlotCount:        z[k],
				HasOverflow:      false,
				CumulativeMaxBit: cum,
			})
			break
		}

		// Terminator (a): remaining participation has collapsed below
		// threshold relative to the first plane's population.
		if z[0] > 0 && float64(z[k])/float64(z[0]) <= opts.CollapseFraction {
			delta := maxBit - k + 1
			cum += uint(delta)
			planes = append(planes, Plane{
				ValueBits:        uint(delta),
				SlotCount:        z[k],
				HasOverflow:      false,
				CumulativeMaxBit: cum,
			})
			break
		}

		// Grow delta while the next bit is still used by at least half
		// as many slots as the plane's own first bit.
		delta := 1
		for k+delta <= maxBit && z[k+delta] >= z[k]/2 {
			delta++
		}

		// Clamp so we don't run past maxBit.
		if k+delta-1 > maxBit {
			delta = maxBit - k + 1
		}

		cum += uint(delta)
		isLast := k+delta-1 >= maxBit
		planes = append(planes, Plane{
			ValueBits:        uint(delta),
			SlotCount:        z[k],
			HasOverflow:      !isLast,
			OverflowBucket:   bucket,
			CumulativeMaxBit: cum,
		})

		k += delta
	}

	return planes, nil
}
