// Package logging provides the process-wide logger. MCP servers own
// stdout for the protocol stream, so logs go to a rotated file (or stderr
// when no file is configured).
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a logger writing to path with size-based rotation. An empty
// path logs to stderr. verbose controls whether the logger is enabled at
// all; a quiet logger discards everything.
func New(path string, verbose bool, maxSizeMB, maxBackups, maxAgeDays int) *log.Logger {
	var w io.Writer
	switch {
	case path != "":
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
	case verbose:
		w = os.Stderr
	default:
		w = io.Discard
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}
