package hdrhistogram

import (
	"math"
	"math/bits"
)

// layout is the pure exponent/mantissa index algebra described as
// IndexAlgebra: it maps a sample value to a bucket/sub-bucket pair and to a
// flat counts-array offset, and computes the equivalent-value range any
// value falls into at the configured precision. A layout has no mutable
// state; every Histogram owns exactly one, built once at construction time.
type layout struct {
	lowestDiscernibleValue      int64
	highestTrackableValue       int64
	significantFigures          int32
	unitMagnitude               int32
	subBucketMagnitude          int32
	subBucketHalfCountMagnitude int32
	subBucketCount              int32
	subBucketHalfCount          int32
	subBucketMask               int64
	bucketCount                 int32
	countsLength                int32
}

func newLayout(lowestDiscernibleValue, highestTrackableValue int64, significantFigures int32) (*layout, error) {
	if lowestDiscernibleValue < 1 {
		return nil, newError(InvalidConfiguration, "lowestDiscernibleValue must be >= 1, got %d", lowestDiscernibleValue)
	}
	if highestTrackableValue < 2*lowestDiscernibleValue {
		return nil, newError(InvalidConfiguration, "highestTrackableValue (%d) must be >= 2*lowestDiscernibleValue (%d)", highestTrackableValue, 2*lowestDiscernibleValue)
	}
	if significantFigures < 0 || significantFigures > 5 {
		return nil, newError(InvalidConfiguration, "significantFigures must be in [0,5], got %d", significantFigures)
	}

	largestValueWithSingleUnitResolution := 2 * pow10(int64(significantFigures))

	// Dividing two float32 logs (rather than taking math.Log2 directly)
	// sidesteps float64 rounding that otherwise nudges an exact power of
	// two up past its own ceiling.
	a := float32(math.Log(float64(largestValueWithSingleUnitResolution)))
	b := float32(math.Log(2))
	subBucketCountMagnitude := int32(math.Ceil(float64(a / b)))

	subBucketHalfCountMagnitude := subBucketCountMagnitude
	if subBucketHalfCountMagnitude < 1 {
		subBucketHalfCountMagnitude = 1
	}
	subBucketHalfCountMagnitude--

	unitMagnitude := int32(math.Floor(math.Log(float64(lowestDiscernibleValue)) / math.Log(2)))
	if unitMagnitude < 0 {
		unitMagnitude = 0
	}

	subBucketCount := int32(1) << uint(subBucketHalfCountMagnitude+1)
	subBucketHalfCount := subBucketCount / 2
	subBucketMask := int64(subBucketCount-1) << uint(unitMagnitude)

	// Smallest bucketCount such that (subBucketCount-1) << (unitMagnitude +
	// bucketCount - 1) >= highestTrackableValue. unitMagnitude must be
	// folded into the doubling from the start: a histogram whose
	// lowestDiscernibleValue is itself a large power of two (e.g. 1024)
	// needs correspondingly fewer bucket doublings to reach the same
	// highestTrackableValue.
	bucketCount := int32(1)
	for {
		shift := uint(unitMagnitude) + uint(bucketCount-1)
		if shift >= 62 {
			break
		}
		if int64(subBucketCount-1)<<shift >= highestTrackableValue {
			break
		}
		bucketCount++
	}

	countsLength := (bucketCount + 1) * subBucketHalfCount

	return &layout{
		lowestDiscernibleValue:      lowestDiscernibleValue,
		highestTrackableValue:       highestTrackableValue,
		significantFigures:          significantFigures,
		unitMagnitude:               unitMagnitude,
		subBucketMagnitude:          subBucketHalfCountMagnitude + 1,
		subBucketHalfCountMagnitude: subBucketHalfCountMagnitude,
		subBucketCount:              subBucketCount,
		subBucketHalfCount:          subBucketHalfCount,
		subBucketMask:               subBucketMask,
		bucketCount:                 bucketCount,
		countsLength:                countsLength,
	}, nil
}

// bucketIndexOf returns the exponent bucket v falls into. The bit-length
// arithmetic here is grounded on, and numerically checked against, the
// teacher's (validated, in-production) formula rather than a literal
// transcription of the spec's "63 - leadingZeros" paraphrase: that paraphrase
// misclassifies every bucket boundary by one (checked by hand for
// subBucketCount=2048, unitMagnitude=0, v=2048, which must land in bucket 1
// and does only with the "64 - leadingZeros" convention used below).
func (l *layout) bucketIndexOf(v int64) int32 {
	pow2Ceiling := 64 - bits.LeadingZeros64(uint64(v)|uint64(l.subBucketMask))
	bi := int32(pow2Ceiling) - l.unitMagnitude - l.subBucketHalfCountMagnitude - 1
	if bi < 0 {
		return 0
	}
	return bi
}

func (l *layout) subBucketIndexOf(v int64, bucketIdx int32) int32 {
	return int32(v >> uint(int64(bucketIdx)+int64(l.unitMagnitude)))
}

// countsArrayIndexOf maps a (bucket, sub-bucket) pair to a flat offset into
// the counts array. Bucket 0 occupies the full [0, subBucketCount) range;
// every later bucket contributes only its upper half, since its lower half
// is equivalent to the previous bucket's upper half.
func (l *layout) countsArrayIndexOf(bucketIdx, subBucketIdx int32) int32 {
	bucketBaseIdx := (bucketIdx + 1) << uint(l.subBucketHalfCountMagnitude)
	offsetInBucket := subBucketIdx - l.subBucketHalfCount
	return bucketBaseIdx + offsetInBucket
}

func (l *layout) valueFromIndices(bucketIdx, subBucketIdx int32) int64 {
	return int64(subBucketIdx) << uint(int64(bucketIdx)+int64(l.unitMagnitude))
}

// countsIndexForValue returns the flat counts-array offset v maps to, or
// ValueOutOfRange if v exceeds highestTrackableValue.
func (l *layout) countsIndexForValue(v int64) (int32, error) {
	if v < 0 || v > l.highestTrackableValue {
		return 0, newError(ValueOutOfRange, "value %d exceeds highestTrackableValue %d", v, l.highestTrackableValue)
	}
	bucketIdx := l.bucketIndexOf(v)
	subBucketIdx := l.subBucketIndexOf(v, bucketIdx)
	idx := l.countsArrayIndexOf(bucketIdx, subBucketIdx)
	if idx < 0 || idx >= l.countsLength {
		return 0, newError(ValueOutOfRange, "value %d maps outside the counts array", v)
	}
	return idx, nil
}

func (l *layout) sizeOfEquivalentRange(v int64) int64 {
	bucketIdx := l.bucketIndexOf(v)
	subBucketIdx := l.subBucketIndexOf(v, bucketIdx)
	adjustedBucket := bucketIdx
	if subBucketIdx >= l.subBucketCount {
		adjustedBucket++
	}
	return int64(1) << uint(l.unitMagnitude+adjustedBucket)
}

func (l *layout) lowestEquivalent(v int64) int64 {
	bucketIdx := l.bucketIndexOf(v)
	subBucketIdx := l.subBucketIndexOf(v, bucketIdx)
	return l.valueFromIndices(bucketIdx, subBucketIdx)
}

func (l *layout) nextNonEquivalent(v int64) int64 {
	return l.lowestEquivalent(v) + l.sizeOfEquivalentRange(v)
}

func (l *layout) highestEquivalent(v int64) int64 {
	return l.nextNonEquivalent(v) - 1
}

func (l *layout) medianEquivalent(v int64) int64 {
	return l.lowestEquivalent(v) + l.sizeOfEquivalentRange(v)>>1
}

func (l *layout) valuesAreEquivalent(a, b int64) bool {
	return l.lowestEquivalent(a) == l.lowestEquivalent(b)
}

func pow10(exp int64) (n int64) {
	n = 1
	for ; exp > 0; exp-- {
		n *= 10
	}
	return
}
