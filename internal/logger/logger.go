package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var Logger *log.Logger

var (
	mu       sync.Mutex
	children []*log.Logger
)

func init() {
	Logger = log.New(os.Stderr)

	// Set log level from environment variable
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel changes the level of the package logger. Unknown or empty
// values fall back to INFO.
func SetLevel(level string) {
	lvl := log.InfoLevel
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = log.DebugLevel
	case "WARN", "WARNING":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	case "FATAL":
		lvl = log.FatalLevel
	}

	mu.Lock()
	defer mu.Unlock()
	Logger.SetLevel(lvl)
	for _, child := range children {
		child.SetLevel(lvl)
	}
}

// With returns a child logger carrying the given prefix and key/value pairs.
// Packages keep one of these for their structured logs.
func With(prefix string, keyvals ...interface{}) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := Logger.With(keyvals...)
	l.SetPrefix(prefix)
	children = append(children, l)
	return l
}

// Convenience functions for common operations
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}
