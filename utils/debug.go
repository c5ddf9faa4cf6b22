package utils

import (
	"io"
	"log"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams. A nil writer disables
// its stream; all streams start disabled.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[dgmesh] ", w.Ops)
	diagLogger = newLogger("[dgmesh] ", w.Diag)
	traceLogger = newLogger("[dgmesh] ", w.Trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream: geometry failures, rejected operations.
func Opsf(format string, args ...interface{}) {
	logf(&opsLogger, format, args...)
}

// Diagf logs to the diag stream: one line per mesh modification.
func Diagf(format string, args ...interface{}) {
	logf(&diagLogger, format, args...)
}

// Tracef logs to the trace stream: per-pass smoothing statistics.
func Tracef(format string, args ...interface{}) {
	logf(&traceLogger, format, args...)
}

func logf(target **log.Logger, format string, args ...interface{}) {
	mu.RLock()
	l := *target
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
