package topk

import "testing"

func drainAll(t *testing.T, h *BHeap) []uint64 {
	t.Helper()
	var got []uint64
	for {
		c, _, ok := h.Pop()
		if !ok {
			break
		}
		got = append(got, c)
	}
	return got
}

func assertSeq(t *testing.T, got []uint64, want ...uint64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("sequence length = %d, want %d (got %v, want %v)", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence[%d] = %d, want %d (full got %v, want %v)", i, got[i], want[i], got, want)
		}
	}
}

func TestScenarioSmoke(t *testing.T) {
	h, err := New(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range []uint64{100, 99, 101} {
		h.Offer(c, uint32(i))
	}
	assertSeq(t, drainAll(t, h), 99, 100, 101)
}

func TestScenarioOverflow(t *testing.T) {
	h, err := New(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range []uint64{100, 99, 101, 102} {
		h.Offer(c, uint32(i))
	}
	assertSeq(t, drainAll(t, h), 99, 100, 101, 102)
}

func TestScenarioChurn(t *testing.T) {
	h, err := New(5, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range []uint64{2, 4, 1, 3, 5} {
		h.Offer(c, uint32(i))
	}

	var seq []uint64
	c, _, ok := h.Pop()
	if !ok {
		t.Fatal("expected a pop")
	}
	seq = append(seq, c)

	h.Offer(6, 99)

	seq = append(seq, drainAll(t, h)...)
	assertSeq(t, seq, 1, 2, 3, 4, 5, 6)
}

func TestOfferDropsValuesBelowMinimumWhenFull(t *testing.T) {
	h, err := New(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range []uint64{10, 20, 30} {
		h.Offer(c, uint32(i))
	}
	h.Offer(5, 99) // below current min (10): must be dropped
	if got := h.Len(); got != 3 {
		t.Fatalf("Len() = %d after a dropped offer, want 3", got)
	}
	assertSeq(t, drainAll(t, h), 10, 20, 30)
}

func TestOfferReplacesMinimumWhenFull(t *testing.T) {
	h, err := New(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range []uint64{10, 20, 30} {
		h.Offer(c, uint32(i))
	}
	h.Offer(25, 99) // displaces 10
	assertSeq(t, drainAll(t, h), 20, 25, 30)
}

func TestLargerMiniHeapExponent(t *testing.T) {
	h, err := New(40, 4) // 15-element mini-heaps
	if err != nil {
		t.Fatal(err)
	}
	counts := []uint64{17, 3, 44, 8, 1, 99, 0, 23, 56, 12, 77, 5, 29, 61, 2, 88, 34, 9, 41, 15}
	for i, c := range counts {
		h.Offer(c, uint32(i))
	}

	got := drainAll(t, h)
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("pop sequence not ascending at %d: %v", i, got)
		}
	}
	if len(got) != len(counts) {
		t.Fatalf("drained %d elements, want %d", len(got), len(counts))
	}
}

func TestMaxSizeZero(t *testing.T) {
	h, err := New(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	h.Offer(1, 0)
	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 for maxSize=0", h.Len())
	}
	if _, _, ok := h.Pop(); ok {
		t.Fatal("Pop on an empty zero-capacity heap should report ok=false")
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []struct {
		count uint64
		ord   uint32
	}{
		{0, 0},
		{1, 1},
		{1<<32 - 1, 1<<32 - 1},
		{42, 7},
	}
	for _, c := range cases {
		p := Pack(c.count, c.ord)
		if got := UnpackCount(p); got != c.count {
			t.Fatalf("UnpackCount(Pack(%d,%d)) = %d", c.count, c.ord, got)
		}
		if got := UnpackOrd(p); got != c.ord {
			t.Fatalf("UnpackOrd(Pack(%d,%d)) = %d", c.count, c.ord, got)
		}
	}
}

func TestRejectsInvalidConstruction(t *testing.T) {
	if _, err := New(-1, 2); err == nil {
		t.Fatal("expected error for negative maxSize")
	}
	if _, err := New(10, 0); err == nil {
		t.Fatal("expected error for e=0")
	}
}
