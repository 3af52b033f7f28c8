package hdrhistogram

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
)

// Cookie bases, per §6. Bits 4-7 of a cookie (the high nibble of its least
// significant byte, cookieNibbleMask; the "word-size nibble") carry the per-counter width: 2, 4 or 8 for V0/V1,
// always 9 for V2 (signalling the ZigZag/LEB128 counts encoding rather than
// a fixed width).
const (
	cookieV0UncompressedBase uint32 = 0x1C849308
	cookieV0CompressedBase   uint32 = 0x1C849309
	cookieV1UncompressedBase uint32 = 0x1C849301
	cookieV1CompressedBase   uint32 = 0x1C849302
	cookieV2UncompressedBase uint32 = 0x1C849303
	cookieV2CompressedBase   uint32 = 0x1C849304

	cookieNibbleMask uint32 = 0xF0
	v2WordSizeNibble uint32 = 9
)

func withWordSizeNibble(base uint32, wordSize int) uint32 {
	return base | (uint32(wordSize) << 4)
}

func wordSizeNibbleOf(cookie uint32) int {
	return int((cookie & cookieNibbleMask) >> 4)
}

func cookieBase(cookie uint32) uint32 {
	return cookie &^ cookieNibbleMask
}

const (
	headerSizeV0 = 32
	headerSizeV1 = 40
	headerSizeV2 = 40
)

// EncodedSizeInBytes returns a conservatively high upper bound on the
// number of bytes EncodeInto needs: one that a caller can always safely
// allocate ahead of time.
func (h *Histogram) EncodedSizeInBytes() int {
	relevantLength := h.relevantLength()
	maxBytesPerWord := 9 // worst case: a LEB128-encoded ZigZag int64
	return headerSizeV2 + relevantLength*maxBytesPerWord
}

// relevantLength returns one past the highest counts-array index with a
// non-zero count, i.e. the prefix that actually needs encoding.
func (h *Histogram) relevantLength() int {
	last := 0
	it := h.newBaseIteratorUnlocked()
	for it.advance() {
		if it.countAtIdx != 0 {
			last = int(it.currentIndex) + 1
		}
	}
	return last
}

// EncodeInto writes the V2 uncompressed wire format (§4.7.1) to buf and
// returns the number of bytes written. It fails with BufferTooSmall if buf
// cannot hold EncodedSizeInBytes bytes.
func (h *Histogram) EncodeInto(buf []byte) (int, error) {
	h.lock()
	defer h.unlock()
	return h.encodeV2Locked(buf)
}

func (h *Histogram) encodeV2Locked(buf []byte) (int, error) {
	need := h.EncodedSizeInBytes()
	if len(buf) < need {
		return 0, newError(BufferTooSmall, "buffer has %d bytes, encoding needs up to %d", len(buf), need)
	}

	payload := h.encodeCountsPayloadLocked()
	cookie := withWordSizeNibble(cookieV2UncompressedBase, int(v2WordSizeNibble))

	n := headerSizeV2
	binary.BigEndian.PutUint32(buf[0:4], cookie)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[8:12], 0) // normalizingIndexOffset
	binary.BigEndian.PutUint32(buf[12:16], uint32(h.layout.significantFigures))
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.layout.lowestDiscernibleValue))
	binary.BigEndian.PutUint64(buf[24:32], uint64(h.layout.highestTrackableValue))
	binary.BigEndian.PutUint64(buf[32:40], math.Float64bits(h.conversionRatio))

	if len(buf) < n+len(payload) {
		return 0, newError(BufferTooSmall, "buffer has %d bytes, encoding needs %d", len(buf), n+len(payload))
	}
	n += copy(buf[n:], payload)
	return n, nil
}

// EncodeCompressedInto writes the DEFLATE-compressed framing (§4.7.2) to
// buf and returns the number of bytes written.
func (h *Histogram) EncodeCompressedInto(buf []byte) (int, error) {
	h.lock()
	defer h.unlock()

	raw := make([]byte, h.EncodedSizeInBytes())
	rawN, err := h.encodeV2Locked(raw)
	if err != nil {
		return 0, err
	}
	raw = raw[:rawN]

	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return 0, newError(CorruptEncoding, "building deflate writer: %v", err)
	}
	if _, err := w.Write(raw); err != nil {
		return 0, newError(CorruptEncoding, "compressing histogram: %v", err)
	}
	if err := w.Close(); err != nil {
		return 0, newError(CorruptEncoding, "flushing compressed histogram: %v", err)
	}

	need := 8 + compressed.Len()
	if len(buf) < need {
		return 0, newError(BufferTooSmall, "buffer has %d bytes, compressed encoding needs %d", len(buf), need)
	}

	cookie := withWordSizeNibble(cookieV2CompressedBase, int(v2WordSizeNibble))
	binary.BigEndian.PutUint32(buf[0:4], cookie)
	binary.BigEndian.PutUint32(buf[4:8], uint32(compressed.Len()))
	n := 8 + copy(buf[8:], compressed.Bytes())
	return n, nil
}

// encodeCountsPayloadLocked serializes the counts array as run-length
// collapsed ZigZag/LEB128 varints, per §4.7.1: a positive element is a raw
// count, a negative element is the (negated) length of a run of zero
// counts.
func (h *Histogram) encodeCountsPayloadLocked() []byte {
	relevantLength := h.relevantLength()
	var out []byte
	var scratch [binary.MaxVarintLen64]byte

	zeroRun := int64(0)
	flushZeroRun := func() {
		if zeroRun == 0 {
			return
		}
		n := binary.PutVarint(scratch[:], -zeroRun)
		out = append(out, scratch[:n]...)
		zeroRun = 0
	}

	for i := 0; i < relevantLength; i++ {
		count := int64(h.store.get(int32(i)))
		if count == 0 {
			zeroRun++
			continue
		}
		flushZeroRun()
		n := binary.PutVarint(scratch[:], count)
		out = append(out, scratch[:n]...)
	}
	flushZeroRun()
	return out
}

// Decode reads a V0, V1 or V2 uncompressed histogram from buf. By default a
// V2 frame is decoded into a 64-bit-counter target; pass WithWordSize to
// decode into a narrower one (which can then fail with CountExceedsWidth).
// Pass WithMinHighestTrackableValue to floor the target's
// highestTrackableValue above whatever the encoded header carries, per the
// decoder contract in §4.7.5.
func Decode(buf []byte, opts ...Option) (*Histogram, error) {
	return decode(buf, resolveDecodeConfig(opts))
}

// DecodeCompressed reads a DEFLATE-compressed histogram (§4.7.2) from buf,
// skipping a leading RFC-1950 zlib header if one is present.
func DecodeCompressed(buf []byte, opts ...Option) (*Histogram, error) {
	if len(buf) < 8 {
		return nil, newError(CorruptEncoding, "compressed frame too short: %d bytes", len(buf))
	}
	cookie := binary.BigEndian.Uint32(buf[0:4])
	base := cookieBase(cookie)
	if base != cookieV0CompressedBase && base != cookieV1CompressedBase && base != cookieV2CompressedBase {
		return nil, newError(CorruptEncoding, "unrecognized compressed cookie 0x%08X", cookie)
	}
	contentsLength := binary.BigEndian.Uint32(buf[4:8])
	rest := buf[8:]
	if uint32(len(rest)) < contentsLength {
		return nil, newError(CorruptEncoding, "compressed contents length %d exceeds buffer of %d bytes", contentsLength, len(rest))
	}
	rest = rest[:contentsLength]
	rest = stripZlibHeader(rest)

	r := flate.NewReader(bytes.NewReader(rest))
	defer r.Close()
	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(CorruptEncoding, "inflating histogram: %v", err)
	}
	return decode(decompressed, resolveDecodeConfig(opts))
}

func resolveDecodeConfig(opts []Option) config {
	cfg := config{wordSize: 8}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// stripZlibHeader removes a two-byte RFC-1950 zlib header if one is
// present, so the DEFLATE reader underneath sees a raw RFC-1951 stream.
// Producers that wrap their DEFLATE stream in zlib framing are common
// enough in the wild that the decoder tolerates both.
func stripZlibHeader(b []byte) []byte {
	if len(b) < 2 {
		return b
	}
	cmf, flg := b[0], b[1]
	if cmf&0x0F == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0 {
		currentLogger().Debug("stripping RFC-1950 zlib header before inflating")
		return b[2:]
	}
	return b
}

func decode(buf []byte, cfg config) (*Histogram, error) {
	if len(buf) < 4 {
		return nil, newError(CorruptEncoding, "frame too short: %d bytes", len(buf))
	}
	cookie := binary.BigEndian.Uint32(buf[0:4])
	base := cookieBase(cookie)

	switch base {
	case cookieV2UncompressedBase:
		return decodeV2(buf, cookie, cfg)
	case cookieV1UncompressedBase:
		return decodeLegacy(buf, cookie, headerSizeV1, true, cfg)
	case cookieV0UncompressedBase:
		return decodeLegacy(buf, cookie, headerSizeV0, false, cfg)
	default:
		return nil, newError(CorruptEncoding, "unrecognized cookie 0x%08X", cookie)
	}
}

func decodeV2(buf []byte, cookie uint32, cfg config) (*Histogram, error) {
	if wordSizeNibbleOf(cookie) != int(v2WordSizeNibble) {
		return nil, newError(CorruptEncoding, "V2 cookie must carry word-size nibble 9, got %d", wordSizeNibbleOf(cookie))
	}
	if len(buf) < headerSizeV2 {
		return nil, newError(CorruptEncoding, "V2 header needs %d bytes, got %d", headerSizeV2, len(buf))
	}
	payloadLength := binary.BigEndian.Uint32(buf[4:8])
	sigFigs := int32(binary.BigEndian.Uint32(buf[12:16]))
	lowest := int64(binary.BigEndian.Uint64(buf[16:24]))
	highest := int64(binary.BigEndian.Uint64(buf[24:32]))
	ratio := math.Float64frombits(binary.BigEndian.Uint64(buf[32:40]))

	payload := buf[headerSizeV2:]
	if uint32(len(payload)) != payloadLength {
		return nil, newError(CorruptEncoding, "payload length %d disagrees with available %d bytes", payloadLength, len(payload))
	}

	if cfg.minHighestTrackableValue > highest {
		highest = cfg.minHighestTrackableValue
	}
	h, err := New(lowest, highest, int(sigFigs), WithWordSize(cfg.wordSize), WithSynchronized(cfg.synchronized))
	if err != nil {
		return nil, err
	}
	h.conversionRatio = ratio
	if err := decodeCountsPayload(h, payload); err != nil {
		return nil, err
	}
	h.ReestablishTotalCount()
	h.recomputeMinMaxLocked()
	return h, nil
}

func decodeLegacy(buf []byte, cookie uint32, headerSize int, hasPayloadLength bool, cfg config) (*Histogram, error) {
	wordSize := wordSizeNibbleOf(cookie) & 0xE
	if wordSize != 2 && wordSize != 4 && wordSize != 8 {
		return nil, newError(CorruptEncoding, "legacy cookie must carry word-size nibble 2, 4 or 8, got %d", wordSize)
	}
	currentLogger().WithField("wordSize", wordSize).WithField("headerSize", headerSize).
		Debug("decoding legacy histogram cookie")
	if len(buf) < headerSize {
		return nil, newError(CorruptEncoding, "legacy header needs %d bytes, got %d", headerSize, len(buf))
	}

	var sigFigs int32
	var lowest, highest int64
	var payload []byte

	if hasPayloadLength {
		payloadLength := binary.BigEndian.Uint32(buf[4:8])
		sigFigs = int32(binary.BigEndian.Uint32(buf[12:16]))
		lowest = int64(binary.BigEndian.Uint64(buf[16:24]))
		highest = int64(binary.BigEndian.Uint64(buf[24:32]))
		rest := buf[headerSize:]
		if uint32(len(rest)) < payloadLength {
			return nil, newError(CorruptEncoding, "payload length %d exceeds available %d bytes", payloadLength, len(rest))
		}
		payload = rest[:payloadLength]
	} else {
		// V0's 32-byte header has no payload-length or normalizing-offset
		// fields; it carries totalCount directly instead, which is ignored
		// here since ReestablishTotalCount recomputes it from the counts
		// that follow.
		sigFigs = int32(binary.BigEndian.Uint32(buf[4:8]))
		lowest = int64(binary.BigEndian.Uint64(buf[8:16]))
		highest = int64(binary.BigEndian.Uint64(buf[16:24]))
		payload = buf[headerSize:]
	}

	if cfg.minHighestTrackableValue > highest {
		highest = cfg.minHighestTrackableValue
	}
	h, err := New(lowest, highest, int(sigFigs), WithWordSize(wordSize), WithSynchronized(cfg.synchronized))
	if err != nil {
		return nil, err
	}

	count := len(payload) / wordSize
	for i := 0; i < count && int32(i) < h.layout.countsLength; i++ {
		var v uint64
		switch wordSize {
		case 2:
			v = uint64(binary.BigEndian.Uint16(payload[i*2:]))
		case 4:
			v = uint64(binary.BigEndian.Uint32(payload[i*4:]))
		case 8:
			v = binary.BigEndian.Uint64(payload[i*8:])
		}
		h.store.set(int32(i), v)
	}
	h.ReestablishTotalCount()
	h.recomputeMinMaxLocked()
	return h, nil
}

func decodeCountsPayload(h *Histogram, payload []byte) error {
	idx := int32(0)
	for len(payload) > 0 {
		v, n := binary.Varint(payload)
		if n <= 0 {
			return newError(CorruptEncoding, "malformed varint in counts payload")
		}
		payload = payload[n:]
		if v < 0 {
			idx += int32(-v)
			continue
		}
		if idx >= h.layout.countsLength {
			return newError(CorruptEncoding, "counts payload addresses index %d beyond array length %d", idx, h.layout.countsLength)
		}
		if uint64(v) > h.store.maxAllowable() {
			return newError(CountExceedsWidth, "decoded count %d exceeds target counter width", v)
		}
		h.store.set(idx, uint64(v))
		idx++
	}
	return nil
}

func (h *Histogram) recomputeMinMaxLocked() {
	h.maxRecordedValue = 0
	h.minNonZeroRecordedValue = math.MaxInt64
	it := h.newBaseIteratorUnlocked()
	for it.advance() {
		if it.countAtIdx == 0 {
			continue
		}
		if it.valueFromIdx > h.maxRecordedValue {
			h.maxRecordedValue = it.valueFromIdx
		}
		if it.valueFromIdx > 0 && it.valueFromIdx < h.minNonZeroRecordedValue {
			h.minNonZeroRecordedValue = it.valueFromIdx
		}
	}
}
