// Package monitoring holds the process logger and the stream routing used by
// every package that logs on the ops/diag/trace split.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Logf is the process-level logger used by transport, hub and recorder code.
// It defaults to log.Printf; SetLogger can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogWriters holds the io.Writers for each logging stream. A nil writer
// disables that stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// Level selects how many streams are routed to the output writer.
type Level int

const (
	LevelOps Level = iota
	LevelDiag
	LevelTrace
)

// ParseLevel accepts "ops", "diag" or "trace" (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ops":
		return LevelOps, nil
	case "diag":
		return LevelDiag, nil
	case "trace":
		return LevelTrace, nil
	default:
		return LevelOps, fmt.Errorf("unknown log level %q: expected ops, diag or trace", s)
	}
}

// NewLogWriters routes every stream at or below level to w.
func NewLogWriters(level Level, w io.Writer) LogWriters {
	lw := LogWriters{Ops: w}
	if level >= LevelDiag {
		lw.Diag = w
	}
	if level >= LevelTrace {
		lw.Trace = w
	}
	return lw
}
