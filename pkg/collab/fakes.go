package collab

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// FakeOrdinalProducer replays a fixed set of per-document ordinal lists,
// the shape tests and cmd/facetbench use in place of a real segment
// reader. Each call to NextDoc consumes one entry, and Ords returns the
// ordinals of the entry NextDoc last returned; it is not safe
// for concurrent use, matching the single-writer-per-counter contract
// the core assumes of its collaborators.
type FakeOrdinalProducer struct {
	docs []int
	ords [][]uint32
	pos  int

	// RunID tags a single collection pass, handed out so a demo host
	// can correlate log lines across concurrent pool acquisitions.
	RunID string
}

// NewFakeOrdinalProducer builds a producer over docs, where ords[i] is
// the ordinal list for docs[i]. len(docs) must equal len(ords).
func NewFakeOrdinalProducer(docs []int, ords [][]uint32) *FakeOrdinalProducer {
	return &FakeOrdinalProducer{
		docs:  docs,
		ords:  ords,
		RunID: uuid.NewString(),
	}
}

func (p *FakeOrdinalProducer) NextDoc() int {
	if p.pos >= len(p.docs) {
		return NoMoreDocs
	}
	doc := p.docs[p.pos]
	p.pos++
	return doc
}

func (p *FakeOrdinalProducer) Ords(doc int) OrdinalIterator {
	// pos was already advanced past doc by NextDoc; the matching
	// ordinal list sits one slot back.
	return &sliceOrdinalIterator{vals: p.ords[p.pos-1]}
}

type sliceOrdinalIterator struct {
	vals []uint32
	i    int
}

func (it *sliceOrdinalIterator) Next() (uint32, bool) {
	if it.i >= len(it.vals) {
		return 0, false
	}
	v := it.vals[it.i]
	it.i++
	return v, true
}

// SliceMaximaProvider is a MaximaProvider backed by a plain slice, the
// form a test or demo builds directly instead of deriving from an
// index's per-ordinal statistics.
type SliceMaximaProvider struct {
	m []uint64
}

func NewSliceMaximaProvider(m []uint64) *SliceMaximaProvider {
	return &SliceMaximaProvider{m: m}
}

func (s *SliceMaximaProvider) Size() int        { return len(s.m) }
func (s *SliceMaximaProvider) Get(i int) uint64 { return s.m[i] }

func (s *SliceMaximaProvider) BitsRequired(v uint64) int {
	if v == 0 {
		return 1
	}
	bits := 0
	for v > 0 {
		bits++
		v >>= 1
	}
	return bits
}

// SliceTopKSink collects every offered pair without bounding to K; it
// exists for tests that want to observe exactly what a counter
// extraction pass offered, leaving real top-K truncation to
// pkg/topk.BHeap.
type SliceTopKSink struct {
	mu      sync.Mutex
	Offered []Offer
}

type Offer struct {
	Count uint64
	Ord   uint32
}

func (s *SliceTopKSink) Offer(count uint64, ord uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Offered = append(s.Offered, Offer{Count: count, Ord: ord})
}

// WorkerExecutor is an Executor backed by a fixed pool of goroutines
// draining a task channel: a bounded number of background cleaning
// threads configured once at pool construction.
type WorkerExecutor struct {
	tasks  chan func(ctx context.Context)
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerExecutor starts n worker goroutines. n must be >= 1; callers
// wanting inline clearing (n == 0) should not construct a WorkerExecutor
// at all and instead run the clear synchronously.
func NewWorkerExecutor(n int) *WorkerExecutor {
	if n < 1 {
		n = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &WorkerExecutor{
		tasks:  make(chan func(context.Context), 64),
		ctx:    ctx,
		cancel: cancel,
	}
	e.wg.Add(n)
	for i := 0; i < n; i++ {
		go e.worker()
	}
	return e
}

func (e *WorkerExecutor) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case task, ok := <-e.tasks:
			if !ok {
				return
			}
			task(e.ctx)
		}
	}
}

// Submit enqueues task; it blocks only if the executor's internal
// queue is momentarily full.
func (e *WorkerExecutor) Submit(task func(ctx context.Context)) {
	select {
	case e.tasks <- task:
	case <-e.ctx.Done():
	}
}

// Close stops accepting new tasks and waits for in-flight workers to
// drain.
func (e *WorkerExecutor) Close() {
	e.cancel()
	e.wg.Wait()
}
