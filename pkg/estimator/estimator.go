// Package estimator implements a pure predicate deciding whether a
// sparse counter is expected to win over a dense one for a given
// query shape.
package estimator

// ShouldUseSparse reports whether sparse tracking is expected to beat a
// dense scan.
//
// hitCount is the number of matching documents for this query; maxDoc
// is the segment's document count; refCount is the average number of
// field references per document; uniqueValues is the number of
// distinct ordinals in the field; minTags is the minimum uniqueValues
// below which sparse is never worth the overhead; fraction is the
// sparse tracker's capacity as a fraction of uniqueValues; cutOff is
// the safety margin below which sparse iteration is trusted to win.
//
// hitCount*refCount/maxDoc is the random-distribution estimate of how
// many distinct ordinals get touched; fraction*uniqueValues is the
// sparse tracker's capacity. Sparse wins when the estimate sits
// comfortably (by cutOff) under capacity.
func ShouldUseSparse(hitCount, maxDoc, refCount, uniqueValues int64, minTags int64, fraction, cutOff float64) bool {
	if uniqueValues < minTags {
		return false
	}
	if maxDoc == 0 {
		return true
	}
	estimate := float64(hitCount) * float64(refCount) / float64(maxDoc)
	return estimate < fraction*float64(uniqueValues)*cutOff
}
