package counterpool

import (
	"log/slog"
	"math"

	"github.com/sparsefacet/engine/pkg/collab"
	"github.com/sparsefacet/engine/pkg/config"
	"github.com/sparsefacet/engine/pkg/npm"
	"github.com/sparsefacet/engine/pkg/packedvector"
	"github.com/sparsefacet/engine/pkg/sparsecounter"
)

// BuildFactory returns a Factory that chooses between a plain packed
// vector and an NPM the same way a pool's construction path must:
// prefer packed+NPM when cfg.Packed is set and the widest maximum's
// bit-width stays within cfg.PackedLimit, or when that widest maximum
// exceeds what a signed 32-bit int can hold, in which case the plain
// packed vector's single-width slots would need to be 63 bits wide
// across the board and NPM's per-plane layout is used instead. log may
// be nil, in which case slog.Default() is used.
func BuildFactory(maxima collab.MaximaProvider, cfg config.Config, log *slog.Logger) Factory {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "counterpool")

	n := maxima.Size()

	m := make([]uint64, n)
	var widest uint64
	for i := 0; i < n; i++ {
		v := maxima.Get(i)
		m[i] = v
		if v > widest {
			widest = v
		}
	}

	useNPM := cfg.Packed &&
		(maxima.BitsRequired(widest) <= cfg.PackedLimit || widest > math.MaxInt32)

	return func(structureKey uint64) *sparsecounter.SparseCounter {
		if useNPM {
			nv, err := npm.New(m, npm.DefaultOptions())
			if err != nil {
				panic(err)
			}
			log.Debug("plane layout selected", "planes", nv.NumPlanes(), "widestMaximum", widest, "n", n)
			return sparsecounter.New(nv, nv, sparsecounter.Options{
				N:                n,
				Fraction:         cfg.Fraction,
				MaxCountsTracked: cfg.MaxCountsTracked,
				StructureKey:     structureKey,
				Log:              log,
			})
		}

		bits := maxima.BitsRequired(widest)
		pv, err := packedvector.New(n, uint(bits))
		if err != nil {
			panic(err)
		}
		return sparsecounter.New(pv, pv, sparsecounter.Options{
			N:                n,
			Fraction:         cfg.Fraction,
			MaxCountsTracked: cfg.MaxCountsTracked,
			StructureKey:     structureKey,
			Log:              log,
		})
	}
}
