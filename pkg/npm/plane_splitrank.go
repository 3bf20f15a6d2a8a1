package npm

import (
	"github.com/sparsefacet/engine/pkg/packedvector"
	"github.com/sparsefacet/engine/pkg/rankbitset"
)

// splitRankPlane is the "split-rank" variant: identical to splitPlane
// except the overflow bitmap is ranked through rankbitset's two-level
// cache instead of a bucketed popcount scan — O(1) rank at the cost of
// ~12% extra space.
type splitRankPlane struct {
	values *packedvector.Vector
	bits   uint
	n      int

	hasOF bool
	of    *rankbitset.Bitset
}

func newSplitRankPlane(n int, bits uint, hasOverflow bool) (*splitRankPlane, error) {
	v, err := packedvector.New(n, bits)
	if err != nil {
		return nil, err
	}

	p := &splitRankPlane{values: v, bits: bits, n: n, hasOF: hasOverflow}
	if hasOverflow {
		p.of = rankbitset.New(n)
	}
	return p, nil
}

func (p *splitRankPlane) valueBits() uint   { return p.bits }
func (p *splitRankPlane) slotCount() int    { return p.n }
func (p *splitRankPlane) hasOverflow() bool { return p.hasOF }

func (p *splitRankPlane) getValue(pos int) uint64    { return p.values.Get(pos) }
func (p *splitRankPlane) setValue(pos int, v uint64) { p.values.Set(pos, v) }
func (p *splitRankPlane) incValue(pos int) uint64    { return p.values.Inc(pos) }
func (p *splitRankPlane) clearValues()               { p.values.Clear() }

func (p *splitRankPlane) setOverflowBit(pos int)  { p.of.Set(pos) }
func (p *splitRankPlane) overflowBit(pos int) bool { return p.of.Get(pos) }
func (p *splitRankPlane) buildOverflowCache() {
	if p.hasOF {
		p.of.BuildRankCache()
	}
}
func (p *splitRankPlane) rank(pos int) int { return p.of.Rank(pos) }
