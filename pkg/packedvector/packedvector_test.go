package packedvector

import "testing"

func TestGetSetRoundTrip(t *testing.T) {
	for _, bits := range []uint{1, 3, 7, 8, 17, 31, 63, 64} {
		v, err := New(50, bits)
		if err != nil {
			t.Fatalf("New(50, %d): %v", bits, err)
		}

		max := v.mask
		for i := 0; i < 50; i++ {
			val := (uint64(i) * 2654435761) & max
			v.Set(i, val)
		}
		for i := 0; i < 50; i++ {
			want := (uint64(i) * 2654435761) & max
			if got := v.Get(i); got != want {
				t.Fatalf("bits=%d i=%d: got %d want %d", bits, i, got, want)
			}
		}
	}
}

func TestSetMasksExcessBits(t *testing.T) {
	v, err := New(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	v.Set(1, 0xFF)
	if got := v.Get(1); got != 0x7 {
		t.Fatalf("got %d want 7", got)
	}
}

func TestClear(t *testing.T) {
	v, _ := New(10, 5)
	for i := 0; i < 10; i++ {
		v.Set(i, 17)
	}
	v.Clear()
	for i := 0; i < 10; i++ {
		if got := v.Get(i); got != 0 {
			t.Fatalf("index %d: got %d want 0 after Clear", i, got)
		}
	}
}

func TestIncWrapsOnOverflow(t *testing.T) {
	v, _ := New(1, 2) // max representable value 3
	v.Set(0, 3)
	old := v.Inc(0)
	if old != 3 {
		t.Fatalf("Inc old value: got %d want 3", old)
	}
	if got := v.Get(0); got != 0 {
		t.Fatalf("Inc wraparound: got %d want 0", got)
	}
}

func TestNewRejectsInvalidWidth(t *testing.T) {
	if _, err := New(10, 0); err == nil {
		t.Fatal("expected error for width 0")
	}
	if _, err := New(10, 65); err == nil {
		t.Fatal("expected error for width 65")
	}
}

func TestZeroLength(t *testing.T) {
	v, err := New(0, 8)
	if err != nil {
		t.Fatalf("New(0, 8): %v", err)
	}
	if v.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", v.Len())
	}
}

func TestBitsRequired(t *testing.T) {
	cases := []struct {
		val  uint64
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{255, 8},
		{256, 9},
		{1<<63 - 1, 63},
	}
	for _, c := range cases {
		if got := BitsRequired(c.val); got != c.want {
			t.Fatalf("BitsRequired(%d): got %d want %d", c.val, got, c.want)
		}
	}
}
