package hdrhistogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordLinearWalk(t *testing.T, h *Histogram, from, to, step int64) {
	t.Helper()
	for v := from; v <= to; v += step {
		require.NoError(t, h.RecordValue(v))
	}
}

func TestRecordedValuesIteratorVisitsOnlyNonZero(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(100))
	require.NoError(t, h.RecordValue(100))
	require.NoError(t, h.RecordValue(200000))

	it := h.RecordedValues()
	var total int64
	var points int
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		points++
		total += p.CountAtValueIteratedTo
		assert.Greater(t, p.CountAtValueIteratedTo, int64(0))
	}
	assert.Equal(t, 2, points)
	assert.Equal(t, h.TotalCount(), total)
}

func TestAllValuesIteratorCoversEntireArray(t *testing.T) {
	t.Parallel()

	h, err := New(1, 10000, 2)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(1))
	require.NoError(t, h.RecordValue(9999))

	it := h.AllValues()
	count := 0
	var total int64
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		count++
		total += p.CountAtValueIteratedTo
	}
	assert.Equal(t, int(h.countsLength()), count)
	assert.Equal(t, h.TotalCount(), total)
}

func TestLinearIteratorStepCountIsBoundedPastFinalValue(t *testing.T) {
	t.Parallel()

	// A 1 msec linear walk from 0 to 100 sec, recorded at microsecond
	// precision, with a 1 msec step. Per the iterator's own contract, the
	// step count may run past the naive H/step past the final recorded
	// value by up to one sub-bucket's worth of extra steps, never fewer.
	h, err := New(1, 100000000, 3)
	require.NoError(t, err)
	recordLinearWalk(t, h, 1000, 100000000, 1000)

	naiveSteps := int64(100000000 / 1000)
	maxExtraSteps := h.SizeOfEquivalentValueRange(100000000)/1000 + 1

	it := h.Linear(1000)
	var n int64
	var prev int64
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		assert.GreaterOrEqual(t, p.ValueIteratedTo, prev)
		prev = p.ValueIteratedTo
		n++
	}
	assert.GreaterOrEqual(t, n, naiveSteps)
	assert.LessOrEqual(t, n, naiveSteps+maxExtraSteps)
}

func TestLogarithmicIteratorGrowsMultiplicatively(t *testing.T) {
	t.Parallel()

	h, err := New(1, 1000000000, 3)
	require.NoError(t, err)
	for v := int64(1); v <= 1000000; v *= 2 {
		require.NoError(t, h.RecordValue(v))
	}

	it := h.Logarithmic(1, 2.0)
	var prev int64
	n := 0
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		assert.GreaterOrEqual(t, p.ValueIteratedTo, prev)
		prev = p.ValueIteratedTo
		n++
		if n > 200 {
			t.Fatal("logarithmic iterator did not terminate")
		}
	}
	assert.Greater(t, n, 0)
}

func TestPercentileIteratorEndsAtOneHundred(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	for v := int64(1); v <= 10000; v++ {
		require.NoError(t, h.RecordValue(v))
	}

	it := h.Percentiles(5)
	var last IterationPoint
	var got bool
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		assert.GreaterOrEqual(t, p.Percentile, last.Percentile)
		last = p
		got = true
	}
	require.True(t, got)
	assert.Equal(t, 100.0, last.Percentile)
	assert.Equal(t, h.TotalCount(), last.TotalCountToThisValue)
}

func TestIteratorResetReplaysSameSequence(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	for v := int64(1); v <= 50; v++ {
		require.NoError(t, h.RecordValue(v*1000))
	}

	it := h.RecordedValues()
	var first []IterationPoint
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		first = append(first, p)
	}

	it.Reset()
	var second []IterationPoint
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		second = append(second, p)
	}

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}
