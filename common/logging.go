package common

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// loggerPtr stores the engine-wide logger. Accessed atomically so SetLogger can be called while
// texture loads or the animation loop are logging from other goroutines.
var loggerPtr atomic.Pointer[log.Logger]

func init() {
	loggerPtr.Store(NewLogger(os.Stderr, log.InfoLevel))
}

// NewLogger builds a logger with the engine's default formatting: caller reporting, RFC3339
// timestamps and the engine prefix.
//
// Parameters:
//   - w: the destination writer
//   - level: the minimum level that is emitted
//
// Returns:
//   - *log.Logger: the configured logger
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "oxy",
	})
	l.SetLevel(level)
	return l
}

// SetLogger replaces the engine-wide logger. Passing nil restores the default stderr logger.
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *log.Logger) {
	if l == nil {
		l = NewLogger(os.Stderr, log.InfoLevel)
	}
	loggerPtr.Store(l)
}

// SetLogLevel changes the level of the current logger. Unknown level names leave it unchanged.
//
// Parameters:
//   - level: a level name such as "debug", "info", "warn" or "error"
//
// Returns:
//   - error: an error if the level name cannot be parsed
func SetLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger().SetLevel(lvl)
	return nil
}

// Logger returns the current engine-wide logger.
func Logger() *log.Logger {
	return loggerPtr.Load()
}

// LogDebug logs msg at debug level with alternating key/value pairs.
func LogDebug(msg string, keyvals ...any) {
	l := Logger()
	l.Helper()
	l.Debug(msg, keyvals...)
}

func LogInfo(msg string, keyvals ...any) {
	l := Logger()
	l.Helper()
	l.Info(msg, keyvals...)
}

func LogWarn(msg string, keyvals ...any) {
	l := Logger()
	l.Helper()
	l.Warn(msg, keyvals...)
}

func LogError(msg string, keyvals ...any) {
	l := Logger()
	l.Helper()
	l.Error(msg, keyvals...)
}
