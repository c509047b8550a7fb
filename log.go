package rvswd

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// defaultLogger is consulted by any Target that has no logger of its own
// (no SetLogger call, or SetLogger(nil)). It discards output until a caller points
// it somewhere with SetDefaultLogger, keeping wire framing silent by
// default per the no-hot-path-logging rule.
var (
	defaultLoggerMu sync.Mutex
	defaultLogger   = log.NewWithOptions(io.Discard, log.Options{
		Level:  log.InfoLevel,
		Prefix: "rvswd",
	})
)

// SetDefaultLogger replaces the process-wide logger consulted by Targets
// created without one of their own.
func SetDefaultLogger(l *log.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}

func currentDefaultLogger() *log.Logger {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	return defaultLogger
}

func (t *Target) logger() *log.Logger {
	if t.log != nil {
		return t.log
	}
	return currentDefaultLogger()
}
