package hdrhistogram

import "math"

// TotalCount returns the number of values recorded so far.
func (h *Histogram) TotalCount() int64 { return h.totalCount }

// Max returns the highest equivalent value of the largest recorded sample,
// or 0 if nothing has been recorded.
func (h *Histogram) Max() int64 {
	var max int64
	it := h.RecordedValues()
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		max = p.ValueIteratedTo
	}
	if max == 0 {
		return 0
	}
	return h.layout.highestEquivalent(max)
}

// Min returns the lowest equivalent value of the smallest recorded sample,
// or 0 if nothing has been recorded.
func (h *Histogram) Min() int64 {
	if h.totalCount == 0 {
		return 0
	}
	it := h.RecordedValues()
	p, ok := it.Next()
	if !ok {
		return 0
	}
	return h.layout.lowestEquivalent(p.ValueIteratedTo)
}

// MinNonZeroValue returns the smallest recorded value greater than 0, or
// MaxInt64 if none has been recorded.
func (h *Histogram) MinNonZeroValue() int64 {
	return h.minNonZeroRecordedValue
}

// Mean returns the approximate arithmetic mean of the recorded values. It
// returns 0 for an empty histogram.
func (h *Histogram) Mean() float64 {
	if h.totalCount == 0 {
		return 0
	}
	var total int64
	it := h.RecordedValues()
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		total += it.countAtIdx * h.layout.medianEquivalent(it.valueFromIdx)
	}
	return float64(total) / float64(h.totalCount)
}

// StdDev returns the approximate standard deviation of the recorded values.
// It returns 0 for an empty histogram.
func (h *Histogram) StdDev() float64 {
	if h.totalCount == 0 {
		return 0
	}
	mean := h.Mean()
	var geometricDevTotal float64
	it := h.RecordedValues()
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		dev := float64(h.layout.medianEquivalent(it.valueFromIdx)) - mean
		geometricDevTotal += dev * dev * float64(it.countAtIdx)
	}
	return math.Sqrt(geometricDevTotal / float64(h.totalCount))
}

// ValueAtPercentile returns the highest equivalent value of the sample at
// the given percentile (0..100). It returns 0 for an empty histogram.
func (h *Histogram) ValueAtPercentile(percentile float64) int64 {
	if h.totalCount == 0 {
		return 0
	}
	if percentile > 100 {
		percentile = 100
	}
	if percentile < 0 {
		percentile = 0
	}
	countAtPercentile := int64(((percentile / 100) * float64(h.totalCount)) + 0.5)
	if countAtPercentile < 1 {
		countAtPercentile = 1
	}

	var total int64
	it := h.RecordedValues()
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		total += it.countAtIdx
		if total >= countAtPercentile {
			return h.layout.highestEquivalent(it.valueFromIdx)
		}
	}
	return 0
}

// PercentileAtOrBelowValue returns the percentile of samples recorded at or
// below v, in [0, 100].
func (h *Histogram) PercentileAtOrBelowValue(v int64) float64 {
	if h.totalCount == 0 {
		return 0
	}
	targetIdx, err := h.layout.countsIndexForValue(v)
	if err != nil {
		if v < 0 {
			return 0
		}
		targetIdx = h.layout.countsLength - 1
	}
	var total int64
	it := h.AllValues()
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		if it.currentIndex > targetIdx {
			break
		}
		total += p.CountAtValueIteratedTo
	}
	return percentileOf(total, h.totalCount)
}

// CountBetweenValues returns the number of recorded samples in [low, high],
// inclusive. It fails with ValueOutOfRange if either bound is out of range.
func (h *Histogram) CountBetweenValues(low, high int64) (int64, error) {
	if _, err := h.layout.countsIndexForValue(low); err != nil {
		return 0, err
	}
	if _, err := h.layout.countsIndexForValue(high); err != nil {
		return 0, err
	}
	low = h.layout.lowestEquivalent(low)
	high = h.layout.highestEquivalent(high)
	var total int64
	it := h.AllValues()
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		if it.valueFromIdx >= low && it.valueFromIdx <= high {
			total += p.CountAtValueIteratedTo
		}
	}
	return total, nil
}

// CountAtValue returns the number of samples recorded into v's equivalent
// range. It fails with ValueOutOfRange if v is out of range.
func (h *Histogram) CountAtValue(v int64) (int64, error) {
	idx, err := h.layout.countsIndexForValue(v)
	if err != nil {
		return 0, err
	}
	return int64(h.store.get(idx)), nil
}

// HasOverflowed reports whether a narrow-word counter has wrapped, detected
// by comparing the sum of all counters against the independently tracked
// totalCount.
func (h *Histogram) HasOverflowed() bool {
	return h.store.sum() != h.totalCount
}

// ReestablishTotalCount recomputes totalCount from the counts array, bringing
// it back into agreement with the counters after a narrow counter has
// wrapped (see HasOverflowed). Decoding also uses it to derive totalCount.
func (h *Histogram) ReestablishTotalCount() {
	h.lock()
	defer h.unlock()
	h.totalCount = h.store.sum()
}

// SizeOfEquivalentValueRange returns the size, in value units, of the range
// of values v is indistinguishable from at this histogram's precision.
func (h *Histogram) SizeOfEquivalentValueRange(v int64) int64 { return h.layout.sizeOfEquivalentRange(v) }

// LowestEquivalentValue returns the lowest value indistinguishable from v.
func (h *Histogram) LowestEquivalentValue(v int64) int64 { return h.layout.lowestEquivalent(v) }

// HighestEquivalentValue returns the highest value indistinguishable from v.
func (h *Histogram) HighestEquivalentValue(v int64) int64 { return h.layout.highestEquivalent(v) }

// MedianEquivalentValue returns a representative value from v's equivalent
// range, used when accumulating sums over recorded data.
func (h *Histogram) MedianEquivalentValue(v int64) int64 { return h.layout.medianEquivalent(v) }

// NextNonEquivalentValue returns the lowest value that is not equivalent to v.
func (h *Histogram) NextNonEquivalentValue(v int64) int64 { return h.layout.nextNonEquivalent(v) }

// ValuesAreEquivalent reports whether a and b fall into the same equivalent
// range.
func (h *Histogram) ValuesAreEquivalent(a, b int64) bool { return h.layout.valuesAreEquivalent(a, b) }

// Add merges every recorded sample of other into h, returning the number of
// samples dropped because they fell outside h's trackable range. If both
// histograms are synchronized, their monitors are acquired in identity order
// so that two concurrent, opposite-direction Adds cannot deadlock.
func (h *Histogram) Add(other *Histogram) (dropped int64, err error) {
	return h.addWithOptionalCorrection(other, 0)
}

// AddWhileCorrectingForCoordinatedOmission merges other into h the same way
// Add does, but replays each of other's recorded samples through the
// coordinated-omission corrector (as RecordValueWithExpectedInterval would)
// before accumulating it, rather than copying other's raw counts directly.
func (h *Histogram) AddWhileCorrectingForCoordinatedOmission(other *Histogram, expectedInterval int64) error {
	_, err := h.addWithOptionalCorrection(other, expectedInterval)
	return err
}

func (h *Histogram) addWithOptionalCorrection(other *Histogram, expectedInterval int64) (dropped int64, err error) {
	if other.layout.highestTrackableValue > h.layout.highestTrackableValue {
		return 0, newError(RangeExceeded, "source highestTrackableValue %d exceeds target's %d", other.layout.highestTrackableValue, h.layout.highestTrackableValue)
	}

	first, second := h, other
	if other.identity < h.identity {
		first, second = other, h
	}
	first.lock()
	if second != first {
		second.lock()
		defer second.unlock()
	}
	defer first.unlock()

	// §4.4: when both layouts agree bit-for-bit and no CO correction is
	// requested, counts can be added index-wise directly, skipping the
	// per-value index recomputation the general replay loop below does.
	if expectedInterval <= 0 && *h.layout == *other.layout {
		h.addIndexWiseLocked(other)
		return 0, nil
	}

	it := other.newBaseIteratorUnlocked()
	for it.advance() {
		if it.countAtIdx == 0 {
			continue
		}
		v := it.valueFromIdx
		var recErr error
		if expectedInterval > 0 {
			recErr = h.recordValueWithCountAndExpectedIntervalLocked(v, it.countAtIdx, expectedInterval)
		} else {
			recErr = h.recordValueWithCountLocked(v, it.countAtIdx)
		}
		if recErr != nil {
			dropped += it.countAtIdx
		}
	}
	return dropped, nil
}

// addIndexWiseLocked adds other's counts into h one array index at a time,
// without recomputing each index from its value. Both histograms must
// already have been locked by the caller and share an identical layout.
func (h *Histogram) addIndexWiseLocked(other *Histogram) {
	it := other.newBaseIteratorUnlocked()
	for it.advance() {
		if it.countAtIdx == 0 {
			continue
		}
		h.store.addTo(it.currentIndex, uint64(it.countAtIdx))
		h.totalCount += it.countAtIdx
		if it.valueFromIdx > h.maxRecordedValue {
			h.maxRecordedValue = it.valueFromIdx
		}
		if it.valueFromIdx > 0 && it.valueFromIdx < h.minNonZeroRecordedValue {
			h.minNonZeroRecordedValue = it.valueFromIdx
		}
	}
}

// newBaseIteratorUnlocked is used internally by Add, which already holds
// whatever locks are needed on both sides.
func (h *Histogram) newBaseIteratorUnlocked() *baseIterator {
	b := h.newBaseIterator()
	return &b
}

// Copy returns a new histogram with the same configuration and recorded
// data as h.
func (h *Histogram) Copy() (*Histogram, error) {
	cp, err := New(h.layout.lowestDiscernibleValue, h.layout.highestTrackableValue, int(h.layout.significantFigures), WithWordSize(h.store.widthBytes()), WithSynchronized(h.synchronized))
	if err != nil {
		return nil, err
	}
	if err := h.CopyInto(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// CopyCorrectedForCoordinatedOmission returns a new histogram with h's
// samples replayed through the coordinated-omission corrector.
func (h *Histogram) CopyCorrectedForCoordinatedOmission(expectedInterval int64) (*Histogram, error) {
	cp, err := New(h.layout.lowestDiscernibleValue, h.layout.highestTrackableValue, int(h.layout.significantFigures), WithWordSize(h.store.widthBytes()), WithSynchronized(h.synchronized))
	if err != nil {
		return nil, err
	}
	if err := cp.AddWhileCorrectingForCoordinatedOmission(h, expectedInterval); err != nil {
		return nil, err
	}
	cp.startTimestamp = h.startTimestamp
	cp.endTimestamp = h.endTimestamp
	return cp, nil
}

// CopyInto replaces target's data with h's. target must share h's layout
// (lowestDiscernibleValue, highestTrackableValue, significantFigures); it is
// not required to share h's word size.
func (h *Histogram) CopyInto(target *Histogram) error {
	first, second := h, target
	if target.identity < h.identity {
		first, second = target, h
	}
	first.lock()
	if second != first {
		second.lock()
		defer second.unlock()
	}
	defer first.unlock()

	target.resetLocked()

	it := h.newBaseIteratorUnlocked()
	for it.advance() {
		if it.countAtIdx == 0 {
			continue
		}
		idx, err := target.layout.countsIndexForValue(it.valueFromIdx)
		if err != nil {
			return err
		}
		target.store.addTo(idx, uint64(it.countAtIdx))
	}
	target.totalCount = h.totalCount
	target.maxRecordedValue = h.maxRecordedValue
	target.minNonZeroRecordedValue = h.minNonZeroRecordedValue
	target.startTimestamp = h.startTimestamp
	target.endTimestamp = h.endTimestamp
	return nil
}
