package hdrhistogram

import "fmt"

// Kind identifies the class of error a histogram operation failed with, so
// callers can branch on it with errors.As without string matching.
type Kind int

const (
	// InvalidConfiguration means the (lowest, highest, significantDigits)
	// triple passed to New cannot describe a valid layout.
	InvalidConfiguration Kind = iota
	// ValueOutOfRange means a value larger than the histogram's
	// highestTrackableValue was passed to a recording operation.
	ValueOutOfRange
	// RangeExceeded means Add was asked to merge in a histogram whose
	// highestTrackableValue exceeds the receiver's.
	RangeExceeded
	// CountExceedsWidth means a decoded per-index count would not fit in the
	// target histogram's counter width. Add does not check counter width:
	// merged counts wrap on a narrow counter, which HasOverflowed detects.
	CountExceedsWidth
	// BufferTooSmall means an encode target could not hold EncodedSizeInBytes.
	BufferTooSmall
	// CorruptEncoding means a decoded payload failed a structural check:
	// unknown cookie, header/length mismatch, or a DEFLATE stream error.
	CorruptEncoding
	// IterationExhausted names the case of a percentile walk running off the
	// end of the counts array without reaching its target, which the
	// invariants in §3 rule out. No function in this package returns it:
	// ValueAtPercentile returns 0 in that case.
	IterationExhausted
)

func (k Kind) String() string {
	switch k {
	case InvalidConfiguration:
		return "invalid configuration"
	case ValueOutOfRange:
		return "value out of range"
	case RangeExceeded:
		return "range exceeded"
	case CountExceedsWidth:
		return "count exceeds width"
	case BufferTooSmall:
		return "buffer too small"
	case CorruptEncoding:
		return "corrupt encoding"
	case IterationExhausted:
		return "iteration exhausted"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every failing operation in
// this package. It carries the Kind so callers can do:
//
//	var herr *hdrhistogram.Error
//	if errors.As(err, &herr) && herr.Kind == hdrhistogram.ValueOutOfRange { ... }
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
