package counterpool

import (
	"testing"

	"github.com/sparsefacet/engine/pkg/collab"
	"github.com/sparsefacet/engine/pkg/config"
)

func TestRegistryPoolForCreatesOncePerField(t *testing.T) {
	r := NewRegistry(nil, nil)
	maxima := collab.NewSliceMaximaProvider([]uint64{1, 2, 3})

	p1 := r.PoolFor("tags", config.Default(), maxima)
	p2 := r.PoolFor("tags", config.Default(), maxima)
	if p1 != p2 {
		t.Fatal("PoolFor should return the same *Pool on a second call for the same field")
	}
	if r.Fields() != 1 {
		t.Fatalf("Fields() = %d, want 1", r.Fields())
	}
}

func TestRegistryPoolForZeroConfigFallsBackToGlobalDefault(t *testing.T) {
	config.Init()
	config.Swap(config.New(config.WithPoolSize(9)))
	defer config.Init()

	r := NewRegistry(nil, nil)
	maxima := collab.NewSliceMaximaProvider([]uint64{1, 2, 3})

	p := r.PoolFor("unconfigured", config.Config{}, maxima)
	if p.maxPoolSize != 9 {
		t.Fatalf("PoolFor with zero Config should pick up the global config's PoolSize, got maxPoolSize=%d", p.maxPoolSize)
	}
}
