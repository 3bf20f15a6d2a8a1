package layout

import "testing"

func maximaToZ(maxima []uint64) [65]int {
	h := Histogram(func(i int) int { return bitsRequired(maxima[i]) }, len(maxima))
	return Cumulative(h)
}

func bitsRequired(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

func checkInvariants(t *testing.T, planes []Plane) {
	t.Helper()

	var cum uint
	prevSlotCount := -1
	for i, p := range planes {
		if p.ValueBits < 1 {
			t.Fatalf("plane %d: ValueBits %d < 1", i, p.ValueBits)
		}
		cum += p.ValueBits
		if p.CumulativeMaxBit != cum {
			t.Fatalf("plane %d: CumulativeMaxBit %d != running sum %d", i, p.CumulativeMaxBit, cum)
		}
		if i < len(planes)-1 && !p.HasOverflow {
			t.Fatalf("plane %d: non-last plane must HasOverflow", i)
		}
		if i == len(planes)-1 && p.HasOverflow {
			t.Fatalf("last plane %d must not HasOverflow", i)
		}
		if prevSlotCount >= 0 && p.SlotCount > prevSlotCount {
			t.Fatalf("plane %d: SlotCount %d > previous plane's %d (must be non-increasing)", i, p.SlotCount, prevSlotCount)
		}
		prevSlotCount = p.SlotCount
	}
}

func TestPlanLongTail(t *testing.T) {
	maxima := make([]uint64, 1000)
	for i := range maxima {
		maxima[i] = 3 // most slots need 2 bits
	}
	maxima[0] = 1 << 40 // one huge outlier

	z := maximaToZ(maxima)
	planes, err := Plan(z, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(planes) < 2 {
		t.Fatalf("expected multiple planes for long-tailed maxima, got %d", len(planes))
	}
	checkInvariants(t, planes)

	maxBit := int(planes[len(planes)-1].CumulativeMaxBit)
	if maxBit < 41 {
		t.Fatalf("sum(b_p) = %d, want >= 41 to cover the outlier", maxBit)
	}
}

func TestPlanAllOnes(t *testing.T) {
	maxima := make([]uint64, 200)
	for i := range maxima {
		maxima[i] = 1
	}
	z := maximaToZ(maxima)
	planes, err := Plan(z, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(planes) != 1 {
		t.Fatalf("uniform 1-bit maxima should need exactly one plane, got %d", len(planes))
	}
	checkInvariants(t, planes)
}

func TestPlanEmpty(t *testing.T) {
	var z [65]int
	planes, err := Plan(z, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if planes != nil {
		t.Fatalf("N=0 should produce no planes, got %v", planes)
	}
}

func TestPlanRespectsMaxPlanes(t *testing.T) {
	maxima := make([]uint64, 64)
	for i := range maxima {
		// Strictly decreasing participation at every bit forces the
		// planner to keep opening new planes absent the maxPlanes cap.
		maxima[i] = uint64(1) << uint(i%63)
	}
	z := maximaToZ(maxima)

	opts := DefaultOptions()
	opts.MaxPlanes = 3
	planes, err := Plan(z, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(planes) > opts.MaxPlanes {
		t.Fatalf("got %d planes, want <= %d", len(planes), opts.MaxPlanes)
	}
	checkInvariants(t, planes)
}

func TestPlanRejectsBadOptions(t *testing.T) {
	z := maximaToZ([]uint64{1, 2, 3})
	if _, err := Plan(z, Options{MaxPlanes: 1, CollapseFraction: 0.5}); err == nil {
		t.Fatal("expected error for MaxPlanes <= 1")
	}
	if _, err := Plan(z, Options{MaxPlanes: 4, CollapseFraction: 0}); err == nil {
		t.Fatal("expected error for CollapseFraction <= 0")
	}
	if _, err := Plan(z, Options{MaxPlanes: 4, CollapseFraction: 1.5}); err == nil {
		t.Fatal("expected error for CollapseFraction > 1")
	}
}
