package hdrhistogram

import (
	"math"
	"sync"
	"sync/atomic"
)

// identitySeq is the only process-wide mutable state this package keeps: a
// monotonically increasing counter handed out to every Histogram so that
// Add, when both sides are synchronized, can acquire the two monitors in a
// fixed order and so can never deadlock against a concurrent Add going the
// other way.
var identitySeq uint64

func nextIdentity() uint64 {
	return atomic.AddUint64(&identitySeq, 1)
}

// Option configures an optional knob of New. The geometry
// (lowestDiscernibleValue, highestTrackableValue, significantFigures) is
// load-bearing and stays positional; word size and synchronization are the
// two knobs most callers never touch, so they go through options instead of
// crowding the constructor signature.
type Option func(*config)

type config struct {
	wordSize                 int
	synchronized             bool
	minHighestTrackableValue int64
}

// WithWordSize selects the per-counter width in bytes: 2, 4 or 8. The
// default is 8 (64-bit counters, which cannot practically overflow).
func WithWordSize(bytes int) Option {
	return func(c *config) { c.wordSize = bytes }
}

// WithSynchronized makes every mutating Histogram method take the
// histogram's monitor, so the Histogram can be shared across goroutines
// without external locking. The default is false.
func WithSynchronized(synchronized bool) Option {
	return func(c *config) { c.synchronized = synchronized }
}

// WithMinHighestTrackableValue floors the target histogram's
// highestTrackableValue at the given value, regardless of what a decoded
// frame's own header says. Decode and DecodeCompressed are its only callers
// today: a caller that plans to Add further, taller samples into a decoded
// histogram can use it to construct a target wide enough up front. New
// ignores it, since its highestTrackableValue is already an explicit
// positional argument.
func WithMinHighestTrackableValue(v int64) Option {
	return func(c *config) { c.minHighestTrackableValue = v }
}

// Histogram records the distribution of integer samples over a configured
// dynamic range at a configured relative precision, in a single
// pre-allocated counts array. The zero value is not usable; build one with
// New.
type Histogram struct {
	layout *layout
	store  store

	synchronized bool
	mu           sync.Mutex

	identity uint64

	totalCount              int64
	maxRecordedValue        int64
	minNonZeroRecordedValue int64

	startTimestamp int64
	endTimestamp   int64

	conversionRatio float64
}

// New builds a Histogram capable of tracking values in
// [lowestDiscernibleValue, highestTrackableValue] with a relative error
// bounded by 2*10^-significantFigures. It fails with InvalidConfiguration if
// lowestDiscernibleValue < 1, highestTrackableValue < 2*lowestDiscernibleValue,
// or significantFigures is outside [0,5].
func New(lowestDiscernibleValue, highestTrackableValue int64, significantFigures int, opts ...Option) (*Histogram, error) {
	cfg := config{wordSize: 8, synchronized: false}
	for _, opt := range opts {
		opt(&cfg)
	}

	l, err := newLayout(lowestDiscernibleValue, highestTrackableValue, int32(significantFigures))
	if err != nil {
		return nil, err
	}

	s, err := newStore(cfg.wordSize, l.countsLength)
	if err != nil {
		return nil, err
	}

	h := &Histogram{
		layout:                  l,
		store:                   s,
		synchronized:            cfg.synchronized,
		identity:                nextIdentity(),
		minNonZeroRecordedValue: math.MaxInt64,
		conversionRatio:         1.0,
	}
	return h, nil
}

func (h *Histogram) lock() {
	if h.synchronized {
		h.mu.Lock()
	}
}

func (h *Histogram) unlock() {
	if h.synchronized {
		h.mu.Unlock()
	}
}

// Identity returns the process-unique, monotonically increasing number
// assigned to this histogram at construction. It exists solely to give Add
// a deadlock-free lock order between two synchronized histograms.
func (h *Histogram) Identity() uint64 { return h.identity }

// LowestDiscernibleValue returns the configured L.
func (h *Histogram) LowestDiscernibleValue() int64 { return h.layout.lowestDiscernibleValue }

// HighestTrackableValue returns the configured H.
func (h *Histogram) HighestTrackableValue() int64 { return h.layout.highestTrackableValue }

// SignificantFigures returns the configured d.
func (h *Histogram) SignificantFigures() int { return int(h.layout.significantFigures) }

// WordSize returns the per-counter width in bytes (2, 4 or 8).
func (h *Histogram) WordSize() int { return h.store.widthBytes() }

// Synchronized reports whether this histogram serializes mutations on an
// internal monitor.
func (h *Histogram) Synchronized() bool { return h.synchronized }

// StartTimestamp returns the externally-assigned start-of-interval
// timestamp, in epoch milliseconds. The core never reads a clock; this is
// bookkeeping for callers and the interval-log codec.
func (h *Histogram) StartTimestamp() int64 { return h.startTimestamp }

// EndTimestamp returns the externally-assigned end-of-interval timestamp.
func (h *Histogram) EndTimestamp() int64 { return h.endTimestamp }

// SetStartTimestamp sets the start-of-interval timestamp (epoch ms).
func (h *Histogram) SetStartTimestamp(ms int64) { h.startTimestamp = ms }

// SetEndTimestamp sets the end-of-interval timestamp (epoch ms).
func (h *Histogram) SetEndTimestamp(ms int64) { h.endTimestamp = ms }

func (h *Histogram) countsLength() int32 { return h.layout.countsLength }

// ByteSize returns an estimate of the amount of memory allocated to the
// histogram's counts array and layout fields, in bytes.
//
// N.B.: This does not take into account the overhead for slices, maps or the
// mutex, which are small, constant and specific to the compiler version.
func (h *Histogram) ByteSize() int {
	const layoutFields = 3*8 + 8*4
	return layoutFields + int(h.layout.countsLength)*h.store.widthBytes()
}

// Reset clears every counter and the running totals, leaving the
// configuration untouched. Calling Reset twice in a row is a no-op after
// the first call.
func (h *Histogram) Reset() {
	h.lock()
	defer h.unlock()
	h.resetLocked()
}

func (h *Histogram) resetLocked() {
	h.store.clear()
	h.totalCount = 0
	h.maxRecordedValue = 0
	h.minNonZeroRecordedValue = math.MaxInt64
}
