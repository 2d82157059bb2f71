package log

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Thin package-level wrapper around zerolog so call sites stay
// compact: log.Info("msg", "key", value, ...).

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	mu     sync.RWMutex
	logger = newRoot(zerolog.InfoLevel)
)

func newRoot(lvl zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.ErrorFieldName = "err"
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

// SetLevel adjusts the minimum level. Unknown names keep INFO.
func SetLevel(name string) {
	lvl := parseLevel(name, zerolog.InfoLevel)
	mu.Lock()
	logger = newRoot(lvl)
	mu.Unlock()
}

func Debug(msg string, kv ...any) {
	emit(zerolog.DebugLevel, msg, nil, kv)
}

func Info(msg string, kv ...any) {
	emit(zerolog.InfoLevel, msg, nil, kv)
}

func Warn(msg string, kv ...any) {
	emit(zerolog.WarnLevel, msg, nil, kv)
}

func Error(msg string, err error, kv ...any) {
	emit(zerolog.ErrorLevel, msg, err, kv)
}

func emit(lvl zerolog.Level, msg string, err error, kv []any) {
	mu.RLock()
	root := logger
	mu.RUnlock()

	e := root.WithLevel(lvl)
	if e == nil {
		return
	}
	if err != nil {
		e.Err(err)
	}
	// kv comes as pairs: key, value, key, value, ... An odd trailing
	// element is ignored.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
