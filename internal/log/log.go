// Package log wraps the standard logger. Setup can redirect it to a rotating
// file and enable debug output.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process-wide logger
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Debug      bool
}

var debug atomic.Bool

// Setup applies opts to the standard logger. With no file configured the
// output stays on stderr. The returned closer flushes the log file.
func Setup(opts Options) (io.Closer, error) {
	SetDebug(opts.Debug)

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	out := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB, // MB
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays, // days
		Compress:   opts.Compress,
	}
	log.SetOutput(out)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	return out, nil
}

// SetDebug toggles Debugf output
func SetDebug(on bool) {
	debug.Store(on)
}

// Printf calls the standard log.Printf()
func Printf(format string, v ...interface{}) {
	log.Output(2, fmt.Sprintf(format, v...))
}

// Debugf logs with a [DEBUG] prefix when debug output is enabled
func Debugf(format string, v ...interface{}) {
	if debug.Load() {
		log.Output(2, "[DEBUG] "+fmt.Sprintf(format, v...))
	}
}
