package hdrhistogram

import "math"

// IterationPoint is one step yielded by any of the five iterators. It is a
// plain snapshot, produced fresh on every call to Next and never retained by
// the iterator, so the caller is free to store or compare them.
type IterationPoint struct {
	ValueIteratedTo               int64
	ValueIteratedFrom              int64
	CountAtValueIteratedTo         int64
	CountAddedInThisIterationStep  int64
	TotalCountToThisValue          int64
	TotalValueToThisValue          int64
	Percentile                     float64
	PercentileLevelIteratedTo      float64
}

func percentileOf(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return 100.0 * float64(count) / float64(total)
}

// baseIterator is the reusable cursor described in §4.5: it walks the
// (bucketIdx, subBucketIdx) pairs in the exact order they appear in the flat
// counts array, accumulating running totals. Every concrete iterator embeds
// one and adds only its own reachedIterationLevel/getValueIteratedTo/
// incrementIterationLevel policy on top, per the source's design note that
// the five strategies "differ only in three decisions".
type baseIterator struct {
	h            *Histogram
	bucketIdx    int32
	subBucketIdx int32

	currentIndex            int32
	countAtIdx               int64
	valueFromIdx             int64
	highestEquivalentValue   int64
	totalCountToCurrentIndex int64
	totalCountToPrevIndex    int64
	totalValueToCurrentIndex int64

	savedHistogramTotalRawCount int64
}

func (h *Histogram) newBaseIterator() baseIterator {
	return baseIterator{h: h, subBucketIdx: -1, savedHistogramTotalRawCount: h.totalCount}
}

func (b *baseIterator) reset() {
	b.bucketIdx = 0
	b.subBucketIdx = -1
	b.currentIndex = 0
	b.countAtIdx = 0
	b.valueFromIdx = 0
	b.highestEquivalentValue = 0
	b.totalCountToCurrentIndex = 0
	b.totalCountToPrevIndex = 0
	b.totalValueToCurrentIndex = 0
	b.savedHistogramTotalRawCount = b.h.totalCount
}

// step performs the low-level array walk shared by advance and advanceAll:
// move to the next (bucketIdx, subBucketIdx) pair and refresh the cursor's
// per-index fields. It reports whether a new index was visited at all (the
// array itself isn't exhausted); callers decide separately whether the
// histogram's recorded total has already been covered.
func (b *baseIterator) step() bool {
	b.subBucketIdx++
	if b.subBucketIdx >= b.h.layout.subBucketCount {
		b.subBucketIdx = b.h.layout.subBucketHalfCount
		b.bucketIdx++
	}
	if b.bucketIdx >= b.h.layout.bucketCount {
		return false
	}
	idx := b.h.layout.countsArrayIndexOf(b.bucketIdx, b.subBucketIdx)
	b.currentIndex = idx
	b.countAtIdx = int64(b.h.store.get(idx))
	b.totalCountToPrevIndex = b.totalCountToCurrentIndex
	b.totalCountToCurrentIndex += b.countAtIdx
	b.valueFromIdx = b.h.layout.valueFromIndices(b.bucketIdx, b.subBucketIdx)
	b.totalValueToCurrentIndex += b.countAtIdx * b.h.layout.medianEquivalent(b.valueFromIdx)
	b.highestEquivalentValue = b.h.layout.highestEquivalent(b.valueFromIdx)
	return true
}

// advance is used by RecordedValues, Linear, Logarithmic and Percentiles: it
// stops as soon as the running total has caught up with the histogram's
// snapshotted totalCount, since every remaining index is necessarily zero.
func (b *baseIterator) advance() bool {
	if b.totalCountToCurrentIndex >= b.savedHistogramTotalRawCount {
		return false
	}
	return b.step()
}

// advanceAll is used by AllValues: it walks every index in the array,
// including trailing zero-count ones, stopping only when the array itself
// is exhausted.
func (b *baseIterator) advanceAll() bool {
	return b.step()
}

// --- RecordedValues -------------------------------------------------------

// RecordedValuesIterator emits exactly once per counts-array index with a
// non-zero count.
type RecordedValuesIterator struct {
	baseIterator
	valueIteratedFrom     int64
	totalCountToPrevPoint int64
}

// RecordedValues returns an iterator over every index with a non-zero count,
// in increasing value order.
func (h *Histogram) RecordedValues() *RecordedValuesIterator {
	return &RecordedValuesIterator{baseIterator: h.newBaseIterator()}
}

// Reset returns the iterator to its initial state.
func (it *RecordedValuesIterator) Reset() {
	it.reset()
	it.valueIteratedFrom = 0
	it.totalCountToPrevPoint = 0
}

// Next advances to the next non-zero index and reports its IterationPoint.
func (it *RecordedValuesIterator) Next() (IterationPoint, bool) {
	for it.advance() {
		if it.countAtIdx == 0 {
			continue
		}
		p := IterationPoint{
			ValueIteratedTo:              it.highestEquivalentValue,
			ValueIteratedFrom:            it.valueIteratedFrom,
			CountAtValueIteratedTo:       it.countAtIdx,
			CountAddedInThisIterationStep: it.totalCountToCurrentIndex - it.totalCountToPrevPoint,
			TotalCountToThisValue:        it.totalCountToCurrentIndex,
			TotalValueToThisValue:        it.totalValueToCurrentIndex,
			Percentile:                   percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount),
			PercentileLevelIteratedTo:    percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount),
		}
		it.valueIteratedFrom = it.highestEquivalentValue
		it.totalCountToPrevPoint = it.totalCountToCurrentIndex
		return p, true
	}
	return IterationPoint{}, false
}

// Value returns the lowest value of the index the cursor is currently
// positioned at, whereas IterationPoint.ValueIteratedTo reports the highest
// equivalent value of that index.
func (it *RecordedValuesIterator) Value() int64 { return it.valueFromIdx }

// Count returns the count recorded at the cursor's current index.
func (it *RecordedValuesIterator) Count() int64 { return it.countAtIdx }

// --- AllValues -------------------------------------------------------------

// AllValuesIterator emits once per counts-array index, including indices
// with a zero count, until the array is exhausted.
type AllValuesIterator struct {
	baseIterator
	valueIteratedFrom     int64
	totalCountToPrevPoint int64
}

// AllValues returns an iterator over every representable index, zero or not.
func (h *Histogram) AllValues() *AllValuesIterator {
	return &AllValuesIterator{baseIterator: h.newBaseIterator()}
}

// Reset returns the iterator to its initial state.
func (it *AllValuesIterator) Reset() {
	it.reset()
	it.valueIteratedFrom = 0
	it.totalCountToPrevPoint = 0
}

// Next advances to the next index, zero or not, and reports its IterationPoint.
func (it *AllValuesIterator) Next() (IterationPoint, bool) {
	if !it.advanceAll() {
		return IterationPoint{}, false
	}
	p := IterationPoint{
		ValueIteratedTo:              it.highestEquivalentValue,
		ValueIteratedFrom:            it.valueIteratedFrom,
		CountAtValueIteratedTo:       it.countAtIdx,
		CountAddedInThisIterationStep: it.totalCountToCurrentIndex - it.totalCountToPrevPoint,
		TotalCountToThisValue:        it.totalCountToCurrentIndex,
		TotalValueToThisValue:        it.totalValueToCurrentIndex,
		Percentile:                   percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount),
		PercentileLevelIteratedTo:    percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount),
	}
	it.valueIteratedFrom = it.highestEquivalentValue
	it.totalCountToPrevPoint = it.totalCountToCurrentIndex
	return p, true
}

// --- Linear ------------------------------------------------------------

// LinearIterator emits whenever the walk crosses the next multiple of a
// fixed step size.
type LinearIterator struct {
	baseIterator
	stepSize              int64
	nextLevel             int64
	valueIteratedFrom     int64
	totalCountToPrevPoint int64
	exhaustedCursor       bool
}

// Linear returns an iterator that reports one point per stepSize-wide slice
// of the value range, from stepSize up through the quantum containing the
// largest recorded value.
func (h *Histogram) Linear(stepSize int64) *LinearIterator {
	return &LinearIterator{baseIterator: h.newBaseIterator(), stepSize: stepSize, nextLevel: stepSize}
}

// Reset returns the iterator to its initial state, optionally with a new
// step size.
func (it *LinearIterator) Reset(stepSize int64) {
	it.reset()
	it.stepSize = stepSize
	it.nextLevel = stepSize
	it.valueIteratedFrom = 0
	it.totalCountToPrevPoint = 0
	it.exhaustedCursor = false
}

// Next advances to the next step boundary and reports its IterationPoint.
func (it *LinearIterator) Next() (IterationPoint, bool) {
	for {
		if !it.exhaustedCursor && it.highestEquivalentValue < it.nextLevel {
			if it.advance() {
				continue
			}
			it.exhaustedCursor = true
		}
		if it.exhaustedCursor && (it.totalCountToCurrentIndex == 0 || it.nextLevel > it.highestEquivalentValue) {
			return IterationPoint{}, false
		}
		p := IterationPoint{
			ValueIteratedTo:              it.nextLevel,
			ValueIteratedFrom:            it.valueIteratedFrom,
			CountAtValueIteratedTo:       it.countAtIdx,
			CountAddedInThisIterationStep: it.totalCountToCurrentIndex - it.totalCountToPrevPoint,
			TotalCountToThisValue:        it.totalCountToCurrentIndex,
			TotalValueToThisValue:        it.totalValueToCurrentIndex,
			Percentile:                   percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount),
			PercentileLevelIteratedTo:    percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount),
		}
		it.valueIteratedFrom = it.nextLevel
		it.totalCountToPrevPoint = it.totalCountToCurrentIndex
		it.nextLevel += it.stepSize
		return p, true
	}
}

// --- Logarithmic ---------------------------------------------------------

// LogarithmicIterator emits whenever the walk crosses the next power-of-
// logBase boundary, starting at firstBucketSize.
type LogarithmicIterator struct {
	baseIterator
	firstBucketSize       float64
	logBase               float64
	nextLevel             float64
	valueIteratedFrom     int64
	totalCountToPrevPoint int64
	exhaustedCursor       bool
}

// Logarithmic returns an iterator that reports one point per exponentially
// growing slice of the value range: firstBucketSize, firstBucketSize*logBase,
// firstBucketSize*logBase^2, ...
func (h *Histogram) Logarithmic(firstBucketSize int64, logBase float64) *LogarithmicIterator {
	return &LogarithmicIterator{
		baseIterator:    h.newBaseIterator(),
		firstBucketSize: float64(firstBucketSize),
		logBase:         logBase,
		nextLevel:       float64(firstBucketSize),
	}
}

// Reset returns the iterator to its initial state.
func (it *LogarithmicIterator) Reset(firstBucketSize int64, logBase float64) {
	it.reset()
	it.firstBucketSize = float64(firstBucketSize)
	it.logBase = logBase
	it.nextLevel = float64(firstBucketSize)
	it.valueIteratedFrom = 0
	it.totalCountToPrevPoint = 0
	it.exhaustedCursor = false
}

// Next advances to the next logarithmic step boundary and reports its
// IterationPoint.
func (it *LogarithmicIterator) Next() (IterationPoint, bool) {
	for {
		levelValue := int64(it.nextLevel)
		if !it.exhaustedCursor && it.highestEquivalentValue < levelValue {
			if it.advance() {
				continue
			}
			it.exhaustedCursor = true
		}
		if it.exhaustedCursor && (it.totalCountToCurrentIndex == 0 || levelValue > it.highestEquivalentValue) {
			return IterationPoint{}, false
		}
		p := IterationPoint{
			ValueIteratedTo:              levelValue,
			ValueIteratedFrom:            it.valueIteratedFrom,
			CountAtValueIteratedTo:       it.countAtIdx,
			CountAddedInThisIterationStep: it.totalCountToCurrentIndex - it.totalCountToPrevPoint,
			TotalCountToThisValue:        it.totalCountToCurrentIndex,
			TotalValueToThisValue:        it.totalValueToCurrentIndex,
			Percentile:                   percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount),
			PercentileLevelIteratedTo:    percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount),
		}
		it.valueIteratedFrom = levelValue
		it.totalCountToPrevPoint = it.totalCountToCurrentIndex
		it.nextLevel *= it.logBase
		return p, true
	}
}

// --- Percentiles -----------------------------------------------------------

// PercentileIterator emits one point per percentile tick, spaced so that the
// distance remaining to 100% halves every ticksPerHalfDistance emissions.
type PercentileIterator struct {
	baseIterator
	ticksPerHalfDistance   int32
	percentileToIterateTo  float64
	valueIteratedFrom      int64
	totalCountToPrevPoint  int64
	seenLastValue          bool
	started                bool
}

// Percentiles returns an iterator over the percentile schedule described in
// §4.5, terminating with one final point at percentile 100.
func (h *Histogram) Percentiles(ticksPerHalfDistance int32) *PercentileIterator {
	return &PercentileIterator{baseIterator: h.newBaseIterator(), ticksPerHalfDistance: ticksPerHalfDistance}
}

// Reset returns the iterator to its initial state.
func (it *PercentileIterator) Reset(ticksPerHalfDistance int32) {
	it.reset()
	it.ticksPerHalfDistance = ticksPerHalfDistance
	it.percentileToIterateTo = 0
	it.valueIteratedFrom = 0
	it.totalCountToPrevPoint = 0
	it.seenLastValue = false
	it.started = false
}

// Next advances to the next percentile tick and reports its IterationPoint.
func (it *PercentileIterator) Next() (IterationPoint, bool) {
	for {
		if it.totalCountToCurrentIndex >= it.savedHistogramTotalRawCount {
			if it.seenLastValue || it.savedHistogramTotalRawCount == 0 {
				return IterationPoint{}, false
			}
			it.seenLastValue = true
			p := IterationPoint{
				ValueIteratedTo:               it.highestEquivalentValue,
				ValueIteratedFrom:             it.valueIteratedFrom,
				CountAtValueIteratedTo:        it.countAtIdx,
				CountAddedInThisIterationStep: it.totalCountToCurrentIndex - it.totalCountToPrevPoint,
				TotalCountToThisValue:         it.totalCountToCurrentIndex,
				TotalValueToThisValue:         it.totalValueToCurrentIndex,
				Percentile:                    100,
				PercentileLevelIteratedTo:     100,
			}
			it.valueIteratedFrom = it.highestEquivalentValue
			it.totalCountToPrevPoint = it.totalCountToCurrentIndex
			return p, true
		}

		if !it.started {
			it.started = true
			if !it.advance() {
				continue
			}
		}

		advanced := true
		for advanced {
			currentPercentile := percentileOf(it.totalCountToCurrentIndex, it.savedHistogramTotalRawCount)
			if it.countAtIdx != 0 && it.percentileToIterateTo <= currentPercentile {
				level := it.percentileToIterateTo
				halfDistance := math.Pow(2, (math.Log(100.0/(100.0-level))/math.Log(2))+1)
				reportingTicks := float64(it.ticksPerHalfDistance) * halfDistance
				it.percentileToIterateTo += 100.0 / reportingTicks

				p := IterationPoint{
					ValueIteratedTo:               it.highestEquivalentValue,
					ValueIteratedFrom:             it.valueIteratedFrom,
					CountAtValueIteratedTo:        it.countAtIdx,
					CountAddedInThisIterationStep: it.totalCountToCurrentIndex - it.totalCountToPrevPoint,
					TotalCountToThisValue:         it.totalCountToCurrentIndex,
					TotalValueToThisValue:         it.totalValueToCurrentIndex,
					Percentile:                    currentPercentile,
					PercentileLevelIteratedTo:     level,
				}
				it.valueIteratedFrom = it.highestEquivalentValue
				it.totalCountToPrevPoint = it.totalCountToCurrentIndex
				return p, true
			}
			advanced = it.advance()
		}
		// Exhausted (or the array is truly out of indices) without a final
		// bump above: loop around to take the "last value" branch, or stop
		// for good if the histogram's counts can never reach saved total.
		if it.bucketIdx >= it.h.layout.bucketCount {
			return IterationPoint{}, false
		}
	}
}
