package hdrhistogram

// counterWord is the set of unsigned integer widths a counts store can be
// built from, per the source's own design note: "a tagged variant or a
// type-parameter over the counter element with a small trait".
type counterWord interface {
	~uint16 | ~uint32 | ~uint64
}

// store is the width-erased trait every counts-array variant satisfies, so a
// Histogram can hold one regardless of which word width it was built with.
type store interface {
	get(i int32) uint64
	increment(i int32)
	addTo(i int32, delta uint64)
	set(i int32, v uint64)
	clear()
	length() int32
	widthBytes() int
	maxAllowable() uint64
	// sum walks the whole array accumulating into an int64, used to detect
	// overflow (Sigma counts != totalCount) without itself overflowing.
	sum() int64
}

// arrayStore is a fixed-length counts array of a single unsigned word width.
// Narrow widths wrap silently on overflow, per §4.2; the wrap is detectable
// afterwards via hasOverflowed because totalCount is tracked separately as
// an int64 that never wraps.
type arrayStore[T counterWord] struct {
	counts []T
}

func newArrayStore[T counterWord](length int32) *arrayStore[T] {
	return &arrayStore[T]{counts: make([]T, length)}
}

func (s *arrayStore[T]) get(i int32) uint64        { return uint64(s.counts[i]) }
func (s *arrayStore[T]) increment(i int32)         { s.counts[i]++ }
func (s *arrayStore[T]) addTo(i int32, delta uint64) { s.counts[i] += T(delta) }
func (s *arrayStore[T]) set(i int32, v uint64)     { s.counts[i] = T(v) }
func (s *arrayStore[T]) length() int32             { return int32(len(s.counts)) }
func (s *arrayStore[T]) clear() {
	for i := range s.counts {
		s.counts[i] = 0
	}
}

func (s *arrayStore[T]) widthBytes() int {
	var zero T
	switch any(zero).(type) {
	case uint16:
		return 2
	case uint32:
		return 4
	default:
		return 8
	}
}

func (s *arrayStore[T]) maxAllowable() uint64 {
	var zero T
	switch any(zero).(type) {
	case uint16:
		return uint64(^uint16(0))
	case uint32:
		return uint64(^uint32(0))
	default:
		return ^uint64(0)
	}
}

func (s *arrayStore[T]) sum() int64 {
	var total int64
	for _, c := range s.counts {
		total += int64(c)
	}
	return total
}

// newStore builds the counts array for the given word size (2, 4 or 8
// bytes). Synchronization, per §5, is a per-histogram monitor guarding
// whole operations (record, add, encode) rather than a per-counter lock
// inside the store itself — see Histogram.lock in histogram.go.
func newStore(wordSize int, length int32) (store, error) {
	switch wordSize {
	case 2:
		return newArrayStore[uint16](length), nil
	case 4:
		return newArrayStore[uint32](length), nil
	case 8:
		return newArrayStore[uint64](length), nil
	default:
		return nil, newError(InvalidConfiguration, "wordSize must be 2, 4 or 8, got %d", wordSize)
	}
}
