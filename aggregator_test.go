package hdrhistogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyHistogramAggregates(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)

	assert.Equal(t, int64(0), h.TotalCount())
	assert.Equal(t, int64(0), h.Max())
	assert.Equal(t, int64(0), h.Min())
	assert.Equal(t, 0.0, h.Mean())
	assert.Equal(t, 0.0, h.StdDev())
	assert.Equal(t, int64(0), h.ValueAtPercentile(50))
}

func TestMeanAndStdDevOfUniformSamples(t *testing.T) {
	t.Parallel()

	h, err := New(1, 1000000, 3)
	require.NoError(t, err)

	for v := int64(1); v <= 100; v++ {
		require.NoError(t, h.RecordValue(v * 1000))
	}

	mean := h.Mean()
	assert.InDelta(t, 50500.0, mean, 1000.0)
	assert.Greater(t, h.StdDev(), 0.0)
}

func TestPercentileMonotonicity(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)

	for v := int64(1); v <= 10000; v++ {
		require.NoError(t, h.RecordValue(v))
	}

	prev := int64(0)
	for _, p := range []float64{1, 10, 25, 50, 75, 90, 99, 99.9, 100} {
		v := h.ValueAtPercentile(p)
		assert.GreaterOrEqual(t, v, prev, "percentile %v regressed", p)
		prev = v
	}
}

func TestCountConservationAcrossRecordedValues(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)

	for v := int64(1); v <= 5000; v++ {
		require.NoError(t, h.RecordValue(v * 7))
	}

	var total int64
	it := h.RecordedValues()
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		total += p.CountAtValueIteratedTo
	}
	assert.Equal(t, h.TotalCount(), total)
}

func TestAddMergesCounts(t *testing.T) {
	t.Parallel()

	a, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	b, err := New(1, 3600000000, 3)
	require.NoError(t, err)

	require.NoError(t, a.RecordValue(100))
	require.NoError(t, a.RecordValue(200))
	require.NoError(t, b.RecordValue(300))

	dropped, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dropped)
	assert.Equal(t, int64(3), a.TotalCount())

	count, err := a.CountAtValue(300)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAddRejectsNarrowerTarget(t *testing.T) {
	t.Parallel()

	small, err := New(1, 1000, 2)
	require.NoError(t, err)
	big, err := New(1, 1000000, 2)
	require.NoError(t, err)

	require.NoError(t, big.RecordValue(500000))

	_, err = small.Add(big)
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, RangeExceeded, herr.Kind)
}

func TestAddIsCommutativeOnTotals(t *testing.T) {
	t.Parallel()

	a, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	b, err := New(1, 3600000000, 3)
	require.NoError(t, err)

	for v := int64(1); v <= 100; v++ {
		require.NoError(t, a.RecordValue(v*13))
		require.NoError(t, b.RecordValue(v*31))
	}

	ab, err := a.Copy()
	require.NoError(t, err)
	_, err = ab.Add(b)
	require.NoError(t, err)

	ba, err := b.Copy()
	require.NoError(t, err)
	_, err = ba.Add(a)
	require.NoError(t, err)

	assert.Equal(t, ab.TotalCount(), ba.TotalCount())
	assert.Equal(t, ab.Mean(), ba.Mean())
}

func TestCopyIsIndependent(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(42))

	cp, err := h.Copy()
	require.NoError(t, err)
	require.NoError(t, cp.RecordValue(1000))

	assert.Equal(t, int64(1), h.TotalCount())
	assert.Equal(t, int64(2), cp.TotalCount())
}

func TestResetIsIdempotent(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(42))

	h.Reset()
	h.Reset()

	assert.Equal(t, int64(0), h.TotalCount())
	assert.Equal(t, int64(0), h.Max())
}

func TestHasOverflowedDetectsNarrowWrap(t *testing.T) {
	t.Parallel()

	h, err := New(1, 1000, 3, WithWordSize(2))
	require.NoError(t, err)

	require.NoError(t, h.RecordValueWithCount(500, 70000))
	assert.True(t, h.HasOverflowed())

	h.ReestablishTotalCount()
	assert.False(t, h.HasOverflowed())
}

func TestPercentileAtOrBelowValue(t *testing.T) {
	t.Parallel()

	h, err := New(1, 1000000, 3)
	require.NoError(t, err)

	for v := int64(1); v <= 100; v++ {
		require.NoError(t, h.RecordValue(v * 100))
	}

	assert.Equal(t, 0.0, h.PercentileAtOrBelowValue(0))
	assert.InDelta(t, 50.0, h.PercentileAtOrBelowValue(5000), 2.0)
	assert.Equal(t, 100.0, h.PercentileAtOrBelowValue(h.HighestTrackableValue()))

	p1 := h.PercentileAtOrBelowValue(1000)
	p2 := h.PercentileAtOrBelowValue(9000)
	assert.Less(t, p1, p2)
}

func TestCountBetweenValues(t *testing.T) {
	t.Parallel()

	h, err := New(1, 1000000, 3)
	require.NoError(t, err)

	for v := int64(1); v <= 100; v++ {
		require.NoError(t, h.RecordValue(v * 100))
	}

	count, err := h.CountBetweenValues(1000, 5000)
	require.NoError(t, err)
	assert.Greater(t, count, int64(0))
	assert.LessOrEqual(t, count, h.TotalCount())
}
