package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, "console", LevelInfo)
)

// Setup replaces the process logger. format is "json" or "console";
// anything else falls back to console output.
func Setup(w io.Writer, format string, level Level) {
	l := newLogger(w, format, level)
	mu.Lock()
	logger = l
	mu.Unlock()
}

func SetLevel(l Level) {
	mu.Lock()
	logger = logger.Level(zerologLevel(l))
	mu.Unlock()
}

// ParseLevel maps a config string onto a Level; unknown values map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	emit(current().Debug(), msg, kv...)
}

func Info(msg string, kv ...any) {
	emit(current().Info(), msg, kv...)
}

func Warn(msg string, kv ...any) {
	emit(current().Warn(), msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	emit(current().Error().Err(err), msg, kv...)
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

func newLogger(w io.Writer, format string, level Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if !strings.EqualFold(format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339Nano, NoColor: true}
	}
	return zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// emit expects kv as pairs: key, value, key, value, ...
// Non-string keys are skipped; a trailing odd value is ignored.
func emit(ev *zerolog.Event, msg string, kv ...any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
