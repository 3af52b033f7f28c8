package hdrhistogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValueWithinRange(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)

	require.NoError(t, h.RecordValue(1))
	require.NoError(t, h.RecordValue(1000000))
	require.NoError(t, h.RecordValue(3600000000))

	assert.Equal(t, int64(3), h.TotalCount())
}

func TestRecordValueRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	h, err := New(1, 1000, 2)
	require.NoError(t, err)

	err = h.RecordValue(1001)
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, ValueOutOfRange, herr.Kind)
	assert.Equal(t, int64(0), h.TotalCount())
}

func TestRecordValueWithCountAccumulates(t *testing.T) {
	t.Parallel()

	h, err := New(1, 1000000, 3)
	require.NoError(t, err)

	require.NoError(t, h.RecordValueWithCount(500, 7))
	assert.Equal(t, int64(7), h.TotalCount())

	count, err := h.CountAtValue(500)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestRelativeErrorBound(t *testing.T) {
	t.Parallel()

	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)

	for _, v := range []int64{1, 100, 12345, 999999, 123456789} {
		require.NoError(t, h.RecordValue(v))
		vp, err := h.CountAtValue(v)
		require.NoError(t, err)
		assert.Equal(t, int64(1), vp)

		// An equivalent range is never narrower than one unit, so the bound
		// is 2*10^-3 of v plus that one unit.
		lo := h.LowestEquivalentValue(v)
		hi := h.HighestEquivalentValue(v)
		width := hi - lo + 1
		maxWidth := float64(v)*2*1e-3 + 1
		assert.LessOrEqual(t, float64(width), maxWidth, "value %d has too wide an equivalent range [%d,%d]", v, lo, hi)
	}
}

func TestCoordinatedOmissionCorrectionAtRecordingMatchesPostRecording(t *testing.T) {
	t.Parallel()

	const (
		value            = int64(207500000)
		expectedInterval = int64(10000)
	)

	atRecording, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	require.NoError(t, atRecording.RecordValueWithExpectedInterval(value, expectedInterval))

	raw, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	require.NoError(t, raw.RecordValue(value))

	postRecording, err := raw.CopyCorrectedForCoordinatedOmission(expectedInterval)
	require.NoError(t, err)

	assert.Equal(t, atRecording.TotalCount(), postRecording.TotalCount())
	assert.Equal(t, atRecording.Mean(), postRecording.Mean())
	for _, p := range []float64{50, 90, 99, 99.9} {
		assert.Equal(t, atRecording.ValueAtPercentile(p), postRecording.ValueAtPercentile(p), "mismatch at p%v", p)
	}
}
