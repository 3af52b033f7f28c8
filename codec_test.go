package hdrhistogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleHistogram(t *testing.T) *Histogram {
	t.Helper()
	h, err := New(1, 3600000000, 3)
	require.NoError(t, err)
	for v := int64(1); v <= 1000; v++ {
		require.NoError(t, h.RecordValue(v*v))
	}
	return h
}

func TestEncodeDecodeRoundTripUncompressed(t *testing.T) {
	t.Parallel()

	h := buildSampleHistogram(t)
	buf := make([]byte, h.EncodedSizeInBytes())
	n, err := h.EncodeInto(buf)
	require.NoError(t, err)

	decoded, err := Decode(buf[:n])
	require.NoError(t, err)

	assert.Equal(t, h.TotalCount(), decoded.TotalCount())
	assert.Equal(t, h.Max(), decoded.Max())
	assert.Equal(t, h.LowestDiscernibleValue(), decoded.LowestDiscernibleValue())
	assert.Equal(t, h.HighestTrackableValue(), decoded.HighestTrackableValue())
	for _, p := range []float64{10, 50, 90, 99} {
		assert.Equal(t, h.ValueAtPercentile(p), decoded.ValueAtPercentile(p))
	}
}

func TestEncodeDecodeRoundTripCompressed(t *testing.T) {
	t.Parallel()

	h := buildSampleHistogram(t)
	buf := make([]byte, h.EncodedSizeInBytes())
	n, err := h.EncodeCompressedInto(buf)
	require.NoError(t, err)
	require.Less(t, n, h.EncodedSizeInBytes())

	decoded, err := DecodeCompressed(buf[:n])
	require.NoError(t, err)

	assert.Equal(t, h.TotalCount(), decoded.TotalCount())
	assert.Equal(t, h.Max(), decoded.Max())
}

func TestEncodeIntoRejectsBufferTooSmall(t *testing.T) {
	t.Parallel()

	h := buildSampleHistogram(t)
	buf := make([]byte, 4)
	_, err := h.EncodeInto(buf)
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, BufferTooSmall, herr.Kind)
}

func TestDecodeRejectsPayloadLengthDisagreeingWithBuffer(t *testing.T) {
	t.Parallel()

	h := buildSampleHistogram(t)
	buf := make([]byte, h.EncodedSizeInBytes())
	n, err := h.EncodeInto(buf)
	require.NoError(t, err)

	// Append a stray trailing byte beyond what the header's payload length
	// declares; the decoder must reject this rather than silently ignore it.
	withGarbage := append(append([]byte{}, buf[:n]...), 0x00)
	_, err = Decode(withGarbage)
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, CorruptEncoding, herr.Kind)
}

func TestDecodeRejectsUnrecognizedCookie(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 40)
	buf[0], buf[1], buf[2], buf[3] = 0xDE, 0xAD, 0xBE, 0xEF
	_, err := Decode(buf)
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, CorruptEncoding, herr.Kind)
}

func TestDecodeFloorsHighestTrackableValueAtGivenMinimum(t *testing.T) {
	t.Parallel()

	src, err := New(1, 1000000, 3)
	require.NoError(t, err)
	require.NoError(t, src.RecordValue(500))

	buf := make([]byte, src.EncodedSizeInBytes())
	n, err := src.EncodeInto(buf)
	require.NoError(t, err)

	decoded, err := Decode(buf[:n], WithMinHighestTrackableValue(10000000))
	require.NoError(t, err)
	assert.Equal(t, int64(10000000), decoded.HighestTrackableValue())
	assert.Equal(t, src.TotalCount(), decoded.TotalCount())

	// A floor below the encoded value leaves the encoded value untouched.
	decoded2, err := Decode(buf[:n], WithMinHighestTrackableValue(10))
	require.NoError(t, err)
	assert.Equal(t, src.HighestTrackableValue(), decoded2.HighestTrackableValue())
}

func TestDecodeRejectsCountExceedingNarrowTargetWidth(t *testing.T) {
	t.Parallel()

	src, err := New(1, 1000000, 3)
	require.NoError(t, err)
	require.NoError(t, src.RecordValueWithCount(500, 1<<20))

	buf := make([]byte, src.EncodedSizeInBytes())
	n, err := src.EncodeInto(buf)
	require.NoError(t, err)

	// Decoding the same V2 frame into a 16-bit-counter target cannot hold a
	// single count of 2^20, which CountExceedsWidth exists to catch.
	_, err = Decode(buf[:n], WithWordSize(2))
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, CountExceedsWidth, herr.Kind)
}
