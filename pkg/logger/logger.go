package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Logger is a leveled logger. Output goes to stderr so stdout stays free
// for key=value results.
type Logger struct {
	zl zerolog.Logger
}

func New(levelStr string) *Logger {
	return NewWithWriter(levelStr, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
}

// NewWithWriter logs to w, e.g. a bytes.Buffer in tests
func NewWithWriter(levelStr string, w io.Writer) *Logger {
	zl := zerolog.New(w).Level(parseLevel(levelStr)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Nop discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func parseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// With returns a child logger that adds key=value to every line
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *Logger) Debug(v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprint(v...))
}

func (l *Logger) Info(v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprint(v...))
}

func (l *Logger) Warn(v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprint(v...))
}

func (l *Logger) Error(v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprint(v...))
}

func (l *Logger) Fatal(v ...interface{}) {
	l.zl.Error().Str("severity", "fatal").Msg(fmt.Sprint(v...))
	os.Exit(1)
}
