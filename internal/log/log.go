// Package log provides leveled, categorised logging for multidispatch.
// Logging is off until Init or InitWriter is called. Every written line is
// also published to listeners.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/multidispatch/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string onto a Level. Unknown values map to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN", "warning":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Category groups related log messages.
type Category string

const (
	CatRegistry Category = "registry" // Signature registration and table rebuilds
	CatResolve  Category = "resolve"  // Call resolution and fallback
	CatConflict Category = "conflict" // Ordering and ambiguity analysis
	CatCache    Category = "cache"    // Resolution cache operations
	CatConfig   Category = "config"   // Configuration loading/saving
	CatTable    Category = "table"    // Dispatch table files
	CatStore    Category = "store"    // Snapshot persistence
	CatWatcher  Category = "watcher"  // File watcher events
	CatTrace    Category = "trace"    // Tracing setup
)

// Logger writes entries at or above a minimum level.
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	closer   io.Closer
	enabled  bool
	minLevel Level
	broker   *pubsub.Broker[string]
	now      func() time.Time
}

var (
	current   *Logger
	currentMu sync.RWMutex
)

func newLogger(w io.Writer, c io.Closer, minLevel Level) *Logger {
	return &Logger{
		writer:   w,
		closer:   c,
		enabled:  true,
		minLevel: minLevel,
		broker:   pubsub.NewBroker[string](),
		now:      time.Now,
	}
}

// install makes l the global logger and closes the one it replaces.
func install(l *Logger) {
	currentMu.Lock()
	prev := current
	current = l
	currentMu.Unlock()
	if prev != nil {
		prev.close()
	}
}

func (l *Logger) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = false
	if l.closer != nil {
		_ = l.closer.Close()
		l.closer = nil
	}
	l.broker.Close()
}

func global() *Logger {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// Init appends debug and above to the file at path. The returned cleanup
// closes the file and turns logging off.
func Init(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	l := newLogger(f, f, LevelDebug)
	install(l)
	return func() {
		currentMu.Lock()
		if current == l {
			current = nil
		}
		currentMu.Unlock()
		l.close()
	}, nil
}

// InitWriter points the global logger at w, replacing any previous logger.
func InitWriter(w io.Writer, minLevel Level) {
	install(newLogger(w, nil, minLevel))
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if l := global(); l != nil {
		l.mu.Lock()
		l.enabled = enabled
		l.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if l := global(); l != nil {
		l.mu.Lock()
		l.minLevel = level
		l.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields)
}

// ErrorErr logs at error level with err appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	errText := "<nil>"
	if err != nil {
		errText = err.Error()
	}
	write(LevelError, cat, msg, append(fields, "error", errText))
}

func write(level Level, cat Category, msg string, fields []any) {
	l := global()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || level < l.minLevel {
		return
	}

	entry := format(l.now(), level, cat, msg, fields)
	_, _ = io.WriteString(l.writer, entry)
	l.broker.Publish(pubsub.LogEvent, entry)
}

// format renders one line:
//
//	2025-12-06T10:45:00 [WARN] [conflict] message key=value key2=value2
//
// A trailing key without a value is written as key=<missing>.
func format(ts time.Time, level Level, cat Category, msg string, fields []any) string {
	var b strings.Builder
	b.WriteString(ts.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, " [%s] [%s] %s", level, cat, msg)
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
		} else {
			fmt.Fprintf(&b, " %v=<missing>", fields[i])
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// Listener receives formatted log lines.
type Listener = pubsub.ContinuousListener[string]

// NewListener subscribes to log lines until ctx is done. It returns nil
// while logging is not initialised.
func NewListener(ctx context.Context) *Listener {
	l := global()
	if l == nil {
		return nil
	}
	return pubsub.NewContinuousListener(ctx, l.broker, pubsub.LogEvent)
}
