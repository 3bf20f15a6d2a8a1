// Package topk implements a B-Heap top-K: a size-bounded min-priority
// queue of packed (count, ordinal) pairs, laid out as an outer tree of
// small fixed-size mini-heaps so that a sift touches at most one or two
// cache lines per level instead of one per level of a conventional
// array-backed heap.
//
// This is reimplemented from the algorithm description rather than
// ported from any reference source — the reference implementation's
// own test suite carries FIXMEs against its mini-heap cross-level
// compare, so it is deliberately not used as a template here.
package topk

import (
	"fmt"
	"math/bits"
)

// BHeap is a bounded min-heap of packed (count, ordinal) values. Once
// Len reaches MaxSize, Offer either drops the new value (if it would
// not displace the current minimum) or replaces the minimum and
// re-heapifies.
//
// Internally the heap is addressed by the same 1-based global index a
// plain binary heap would use (parent = g/2, children = 2g, 2g+1), but
// physical storage groups every run of e consecutive levels into one
// mini-heap of 2^e-1 slots, so descending a whole mini-heap touches one
// contiguous allocation rather than log2(2^e-1) scattered ones.
type BHeap struct {
	e   uint
	m   int // elements per mini-heap, 2^e - 1
	mhs [][]uint64 // mhs[b] has length m+1; local index 0 is wasted

	size    int
	maxSize int
}

// New constructs a BHeap bounded to maxSize elements, with mini-heaps of
// 2^e-1 elements (a typical e=4 gives 15-element mini-heaps).
func New(maxSize int, e uint) (*BHeap, error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("topk: negative maxSize %d", maxSize)
	}
	if e < 1 || e > 31 {
		return nil, fmt.Errorf("topk: mini-heap exponent %d out of range [1,31]", e)
	}
	return &BHeap{e: e, m: (1 << e) - 1, maxSize: maxSize}, nil
}

// Pack combines a count and ordinal into the heap's packed
// representation: count occupies the high 32 bits, the bitwise
// complement of ord occupies the low 32 — comparing packed values
// numerically orders primarily by count ascending and, for equal
// counts, by ordinal descending.
func Pack(count uint64, ord uint32) uint64 {
	return (count << 32) | uint64(^ord)
}

// UnpackCount extracts the count from a packed value.
func UnpackCount(packed uint64) uint64 { return packed >> 32 }

// UnpackOrd extracts the ordinal from a packed value.
func UnpackOrd(packed uint64) uint32 { return ^uint32(packed) }

// Len returns the number of elements currently held.
func (h *BHeap) Len() int { return h.size }

// MaxSize returns the configured capacity.
func (h *BHeap) MaxSize() int { return h.maxSize }

// Offer implements the top-K sink collaborator interface. Below
// capacity it's a normal heap insert; at capacity it silently drops any
// value that would not displace the current minimum, otherwise it
// replaces the minimum and sifts down.
func (h *BHeap) Offer(count uint64, ord uint32) {
	packed := Pack(count, ord)

	if h.size < h.maxSize {
		g := h.size + 1
		h.setAt(g, packed)
		h.size++
		h.siftUp(g)
		return
	}
	if h.size == 0 {
		return // maxSize == 0
	}
	if packed <= h.at(1) {
		return
	}
	h.setAt(1, packed)
	h.siftDown(1)
}

// Pop removes and returns the minimum element.
func (h *BHeap) Pop() (count uint64, ord uint32, ok bool) {
	if h.size == 0 {
		return 0, 0, false
	}

	top := h.at(1)
	last := h.at(h.size)
	h.size--
	if h.size > 0 {
		h.setAt(1, last)
		h.siftDown(1)
	}
	return UnpackCount(top), UnpackOrd(top), true
}

// Peek returns the minimum element without removing it.
func (h *BHeap) Peek() (count uint64, ord uint32, ok bool) {
	if h.size == 0 {
		return 0, 0, false
	}
	top := h.at(1)
	return UnpackCount(top), UnpackOrd(top), true
}

func (h *BHeap) siftUp(g int) {
	for g > 1 {
		p := g / 2
		if h.at(p) <= h.at(g) {
			return
		}
		h.swap(p, g)
		g = p
	}
}

func (h *BHeap) siftDown(g int) {
	for {
		left, right := 2*g, 2*g+1
		smallest := g
		if left <= h.size && h.at(left) < h.at(smallest) {
			smallest = left
		}
		if right <= h.size && h.at(right) < h.at(smallest) {
			smallest = right
		}
		if smallest == g {
			return
		}
		h.swap(g, smallest)
		g = smallest
	}
}

func (h *BHeap) swap(a, b int) {
	va, vb := h.at(a), h.at(b)
	h.setAt(a, vb)
	h.setAt(b, va)
}

// at and setAt translate a standard 1-based binary-heap global index
// into (mini-heap index, local slot) and back.
func (h *BHeap) at(g int) uint64 {
	mh, local := h.locate(g)
	return h.mhs[mh][local]
}

func (h *BHeap) setAt(g int, v uint64) {
	mh, local := h.locate(g)
	for len(h.mhs) <= mh {
		h.mhs = append(h.mhs, make([]uint64, h.m+1))
	}
	h.mhs[mh][local] = v
}

// locate computes, for global binary-heap index g, which mini-heap
// holds it and at what local (1-based) slot. Every run of e levels
// forms one row of mini-heaps; within a row, a mini-heap's root is some
// node R at depth row*e, and g's local slot inside that mini-heap is
// its path-from-R re-based to a virtual index 1.
func (h *BHeap) locate(g int) (mh int, local int) {
	depth := bits.Len(uint(g)) - 1
	e := int(h.e)
	row := depth / e
	delta := depth - row*e

	root := g >> uint(delta)
	rowStart := 1 << uint(row*e)
	posInRow := root - rowStart

	mh = h.blockOffset(row) + posInRow
	local = (g & ((1 << uint(delta)) - 1)) | (1 << uint(delta))
	return mh, local
}

// blockOffset returns how many mini-heaps precede row's first one:
// sum_{k=0}^{row-1} 2^(k*e) = (2^(row*e) - 1) / m.
func (h *BHeap) blockOffset(row int) int {
	if row == 0 {
		return 0
	}
	return ((1 << uint(row*int(h.e))) - 1) / h.m
}

// MiniHeapIndex and MiniHeapOffset expose the write cursor — the
// mini-heap and local slot the next Offer below capacity would land
// on.
func (h *BHeap) MiniHeapIndex() int {
	mh, _ := h.locate(h.size + 1)
	return mh
}

func (h *BHeap) MiniHeapOffset() int {
	_, local := h.locate(h.size + 1)
	return local
}
