// Package collab declares the external collaborator interfaces the
// counter engine consumes but never implements for real: ordinal
// iteration, maxima lookup, top-K sinks, and task execution all belong
// to the host. The engine core only ever imports these interfaces,
// never a concrete implementation.
package collab

import "context"

// NoMoreDocs is returned by OrdinalProducer.NextDoc when the host has
// no further documents to iterate for this collector run.
const NoMoreDocs = -1

// OrdinalIterator walks the ordinals a single document maps to for one
// facet field. A document with no value for the field yields no
// ordinals at all.
type OrdinalIterator interface {
	// Next returns the next ordinal and true, or false once exhausted.
	Next() (ord uint32, ok bool)
}

// OrdinalProducer drives a single collection pass: it hands out
// document ids and, for each one, an iterator over the ordinals that
// document holds for the field being counted.
type OrdinalProducer interface {
	// NextDoc returns the next document id, or NoMoreDocs when done.
	NextDoc() int
	// Ords returns the ordinal iterator for doc. Called once per doc
	// returned by NextDoc.
	Ords(doc int) OrdinalIterator
}

// MaximaProvider exposes the per-ordinal maximum count a counter vector
// must be able to represent, computed once per index generation.
type MaximaProvider interface {
	// Size returns N, the number of distinct ordinals.
	Size() int
	// Get returns M[i], the maximum value slot i must hold.
	Get(i int) uint64
	// BitsRequired returns the number of bits needed to represent v.
	BitsRequired(v uint64) int
}

// TopKSink receives (count, ordinal) pairs as the host extracts the
// highest counts out of a filled counter. Implementations are expected
// to keep only the top K and discard the rest.
type TopKSink interface {
	Offer(count uint64, ord uint32)
}

// Executor runs janitor tasks submitted by the counter pool. A thread
// count of 0 at pool construction means the pool never uses an
// Executor and instead clears inline during release.
type Executor interface {
	// Submit enqueues task for asynchronous execution. Submit must not
	// block on task's completion; it may block briefly if the
	// executor's internal queue is full.
	Submit(task func(ctx context.Context))
}
