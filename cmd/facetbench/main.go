// Command facetbench drives the counter engine end-to-end against a
// synthetic document set: build maxima, decide sparse vs dense via the
// sparseness estimator, acquire a counter from a pool, fill it by
// iterating fake postings, extract the top-K ordinals by count, then
// release the counter back to the pool and reacquire it to show reuse.
// Several fields are processed concurrently against one shared registry,
// the way a single query touching multiple facets would.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sparsefacet/engine/pkg/collab"
	"github.com/sparsefacet/engine/pkg/config"
	"github.com/sparsefacet/engine/pkg/counterpool"
	"github.com/sparsefacet/engine/pkg/estimator"
	"github.com/sparsefacet/engine/pkg/logging"
	"github.com/sparsefacet/engine/pkg/retry"
	"github.com/sparsefacet/engine/pkg/sparsecounter"
	"github.com/sparsefacet/engine/pkg/topk"
)

var fieldNames = []string{"tags", "categories", "authors"}

func main() {
	var (
		uniqueValues = flag.Int("unique", 50_000, "number of distinct ordinals for the field")
		docs         = flag.Int("docs", 20_000, "number of synthetic documents to iterate")
		maxRefs      = flag.Int("maxrefs", 5, "max ordinal references per document")
		topN         = flag.Int("top", 10, "top-K ordinals to extract")
		seed         = flag.Int64("seed", 1, "PRNG seed, for reproducible runs")
	)
	flag.Parse()

	logging.Setup(os.Stdout, slog.LevelInfo)
	slog.Info("facetbench starting", "uniqueValues", *uniqueValues, "docs", *docs, "fields", len(fieldNames))

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var executor *collab.WorkerExecutor
	if cfg.CleaningThreads > 0 {
		executor = collab.NewWorkerExecutor(cfg.CleaningThreads)
		defer executor.Close()
	}
	registry := counterpool.NewRegistry(executorOrNil(executor), slog.Default())

	g, _ := errgroup.WithContext(context.Background())
	for i, field := range fieldNames {
		field, seedOffset := field, int64(i)
		g.Go(func() error {
			return runField(registry, field, *seed+seedOffset, *uniqueValues, *docs, *maxRefs, *topN, cfg)
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("field processing failed", "error", err)
		os.Exit(1)
	}

	slog.Info("facetbench done", "fields", registry.Fields())
}

// runField builds one field's synthetic postings, runs two acquire/fill/
// extract/release passes against the shared registry's pool for that
// field (the second pass demonstrating counter reuse via a cache token),
// and reports its top-K ordinals.
func runField(registry *counterpool.Registry, field string, seed int64, uniqueValues, docs, maxRefs, topN int, cfg config.Config) error {
	maxima, hits := buildMaxima(rand.New(rand.NewSource(seed)), uniqueValues, docs, maxRefs)

	fieldCfg := cfg
	useSparse := estimator.ShouldUseSparse(
		int64(docs), int64(docs), int64(maxRefs), int64(uniqueValues),
		fieldCfg.MinTags, fieldCfg.Fraction, fieldCfg.CutOff,
	)
	if !useSparse {
		fieldCfg.Fraction = 0
	}
	slog.Info("sparseness decision", "field", field, "useSparse", useSparse)

	pool := registry.PoolFor(field, fieldCfg, maxima)

	widest := widestMaximum(maxima)
	variant := "packed"
	if fieldCfg.Packed && (maxima.BitsRequired(widest) <= fieldCfg.PackedLimit || widest > math.MaxInt32) {
		variant = "npm"
	}
	structureKey := sparsecounter.HashStructureKey(maxima.Size(), maxima.BitsRequired(widest), variant, fieldCfg.Fraction)

	flaky := rand.New(rand.NewSource(seed + 1))
	ctx := context.Background()

	runPass := func(cacheToken string) error {
		h := pool.Acquire(structureKey, cacheToken)

		producer := collab.NewFakeOrdinalProducer(hits.docs, hits.ords)
		for {
			doc := producer.NextDoc()
			if doc == collab.NoMoreDocs {
				break
			}

			var it collab.OrdinalIterator
			err := retry.Do(ctx, func(context.Context) error {
				if flaky.Intn(20) == 0 {
					return fmt.Errorf("transient read failure for doc %d", doc)
				}
				it = producer.Ords(doc)
				return nil
			}, retry.WithExponentialBackoff(3, time.Millisecond, 10*time.Millisecond)...)
			if err != nil {
				slog.Warn("skipping doc after exhausting retries", "field", field, "doc", doc, "error", err)
				continue
			}

			for {
				ord, ok := it.Next()
				if !ok {
					break
				}
				h.Counter.Inc(int(ord))
			}
		}

		heap, err := topk.New(topN, 4)
		if err != nil {
			return fmt.Errorf("field %s: build top-K heap: %w", field, err)
		}
		h.Counter.Iterate(0, uniqueValues, 1, func(i int, count uint64) {
			heap.Offer(count, uint32(i))
		})

		slog.Info("extraction complete", "field", field, "cacheToken", cacheToken, "topSize", heap.Len())
		for {
			count, ord, ok := heap.Pop()
			if !ok {
				break
			}
			slog.Debug("top-K ordinal", "field", field, "ord", ord, "count", count)
		}

		pool.Release(h, cacheToken)
		return nil
	}

	if err := runPass("phase1"); err != nil {
		return err
	}
	return runPass("phase1")
}

// syntheticHits holds one (doc, ordinals) posting list per document,
// the shape collab.FakeOrdinalProducer replays.
type syntheticHits struct {
	docs []int
	ords [][]uint32
}

func buildMaxima(rng *rand.Rand, uniqueValues, docs, maxRefs int) (collab.MaximaProvider, syntheticHits) {
	counts := make([]uint64, uniqueValues)
	docIDs := make([]int, docs)
	ords := make([][]uint32, docs)

	for d := 0; d < docs; d++ {
		docIDs[d] = d
		n := rng.Intn(maxRefs + 1)
		refs := make([]uint32, n)
		for i := 0; i < n; i++ {
			ord := uint32(rng.Intn(uniqueValues))
			refs[i] = ord
			counts[ord]++
		}
		ords[d] = refs
	}

	return collab.NewSliceMaximaProvider(counts), syntheticHits{docs: docIDs, ords: ords}
}

// executorOrNil avoids passing a typed-nil *WorkerExecutor as a non-nil
// collab.Executor interface value.
func executorOrNil(e *collab.WorkerExecutor) collab.Executor {
	if e == nil {
		return nil
	}
	return e
}

func widestMaximum(maxima collab.MaximaProvider) uint64 {
	var widest uint64
	for i := 0; i < maxima.Size(); i++ {
		if v := maxima.Get(i); v > widest {
			widest = v
		}
	}
	return widest
}
