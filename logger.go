package vitessr

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var isDebug = os.Getenv("DEBUG") != ""

// Logger prints build and scan progress. Warnings are non-fatal and never abort a pass.
type Logger struct {
	zl zerolog.Logger
}

// LoggerOptions configures NewLoggerWithOptions.
type LoggerOptions struct {
	Level  string
	Format string // "pretty" or "json"
	Output io.Writer
}

func NewLogger() *Logger {
	level := "info"
	if isDebug {
		level = "debug"
	}
	return NewLoggerWithOptions(LoggerOptions{Level: level, Format: "pretty"})
}

func NewLoggerWithOptions(opts LoggerOptions) *Logger {
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	zl := zerolog.New(out).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent tags every line with the emitting component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

func (l *Logger) Success(msg string) {
	l.zl.Info().Bool("ok", true).Msg(msg)
}

func (l *Logger) Start(msg string) {
	l.zl.Info().Msg(msg)
}

func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

// Warn logs a recoverable failure. path may be empty.
func (l *Logger) Warn(msg string, path string, err error) {
	ev := l.zl.Warn()
	if path != "" {
		ev = ev.Str("path", path)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

func (l *Logger) Error(msg string, err error) {
	l.zl.Error().Err(err).Msg(msg)
}

func (l *Logger) Banner(title string, items []string) {
	arr := zerolog.Arr()
	for _, item := range items {
		arr = arr.Str(item)
	}
	l.zl.Info().Array("items", arr).Msg(title)
}

func IsDebug() bool {
	return isDebug
}

func FormatPath(path string) string {
	cwd, _ := os.Getwd()
	return strings.TrimPrefix(path, cwd+"/")
}

// loggerOrNop lets zero-value structs log without a nil check at every call site.
func loggerOrNop(l *Logger) *Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}
