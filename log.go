package hdrhistogram

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// logger is the package-wide diagnostic sink. Recording, querying and
// iteration never touch it — those paths stay allocation-free. It is only
// consulted on paths that already do I/O or parsing: the interval-log
// reader, the legacy-cookie decode path and the zlib-header strip before
// compressed decoding.
var (
	loggerMu sync.RWMutex
	logger   logrus.FieldLogger = newDefaultLogger()
)

func newDefaultLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetLogger redirects the package's diagnostic logger. Passing nil restores
// the silent default. Safe for concurrent use.
func SetLogger(l logrus.FieldLogger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		logger = newDefaultLogger()
		return
	}
	logger = l
}

func currentLogger() logrus.FieldLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}
