// Package build centralizes the process-wide logging bootstrap: one
// rotating log file, one btclog.Backend, and one sub-logger per
// subsystem, wired the way breez-lightninglib's daemon/log.go wires
// lnd's subsystems.
package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// LogWriter is an io.Writer that forwards to the active log rotator's
// pipe. It exists so sub-loggers can be constructed before the rotator
// itself is initialized (package init order), matching lnd's
// approach in its daemon package.
type LogWriter struct {
	RotatorPipe *io.PipeWriter
}

func (w *LogWriter) Write(p []byte) (n int, err error) {
	if w.RotatorPipe == nil {
		return os.Stderr.Write(p)
	}
	return w.RotatorPipe.Write(p)
}

var (
	logWriter = &LogWriter{}

	// Backend is the single logging backend every subsystem logger is
	// minted from.
	Backend = btclog.NewBackend(logWriter)

	logRotator *rotator.Rotator
)

// NewSubLogger mints a tagged sub-logger (e.g. "BTCH", "WTCH") from the
// shared backend, matching lnd/breez's per-subsystem logger convention.
func NewSubLogger(tag string, genLogger func(string) btclog.Logger) btclog.Logger {
	if genLogger == nil {
		genLogger = Backend.Logger
	}
	return genLogger(tag)
}

// InitLogRotator initializes the rotating log file. It must be called
// once during process startup, before any subsystem emits a log line
// that isn't safe to drop.
func InitLogRotator(logFile string, maxLogFileSizeKB, maxLogFiles int) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	r, err := rotator.New(logFile, int64(maxLogFileSizeKB*1024), false, maxLogFiles)
	if err != nil {
		return fmt.Errorf("create log rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	logWriter.RotatorPipe = pw
	logRotator = r

	return nil
}

// SetLogLevel applies levelStr to the one logger passed in, falling back
// to info when levelStr is not a known level; callers that hold several
// subsystem loggers call it once per logger.
func SetLogLevel(logger btclog.Logger, levelStr string) {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		level = btclog.InfoLvl
	}
	logger.SetLevel(level)
}
