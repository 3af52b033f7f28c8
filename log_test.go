package hdrhistogram

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLoggerRedirectsOutput(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	SetLogger(l)

	// stripZlibHeader logs at Debug when it strips a header; this is the
	// simplest way to exercise the logger without a full round trip.
	stripped := stripZlibHeader([]byte{0x78, 0x9C, 0x01, 0x02})
	assert.Equal(t, []byte{0x01, 0x02}, stripped)
	assert.Contains(t, buf.String(), "zlib")
}

func TestSetLoggerNilRestoresDefault(t *testing.T) {
	l := logrus.New()
	SetLogger(l)
	SetLogger(nil)

	require.NotNil(t, currentLogger())
}
