package hdrhistogram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesKindAndDetail(t *testing.T) {
	t.Parallel()

	err := newError(ValueOutOfRange, "value %d exceeds %d", 42, 10)
	assert.Equal(t, "value out of range: value 42 exceeds 10", err.Error())
}

func TestErrorIsRecoverableWithErrorsAs(t *testing.T) {
	t.Parallel()

	var wrapped error = newError(RangeExceeded, "boom")
	var herr *Error
	require := errors.As(wrapped, &herr)
	assert.True(t, require)
	assert.Equal(t, RangeExceeded, herr.Kind)
}

func TestKindStringCoversEveryKind(t *testing.T) {
	t.Parallel()

	kinds := []Kind{
		InvalidConfiguration, ValueOutOfRange, RangeExceeded,
		CountExceedsWidth, BufferTooSmall, CorruptEncoding, IterationExhausted,
	}
	for _, k := range kinds {
		assert.NotEqual(t, "unknown", k.String())
	}
}
