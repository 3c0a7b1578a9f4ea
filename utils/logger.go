package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

// LogOptions configures the sinks of a Logger.
type LogOptions struct {
	Level    string
	FilePath string

	FluentEnabled bool
	FluentHost    string
	FluentPort    int
	FluentTag     string
}

// Logger provides leveled logging throughout the application. Every record is
// fanned out to colored stdout, an optional log file and an optional Fluent
// Bit forwarder.
type Logger struct {
	sinks  []*slog.Logger
	fluent *fluent.Fluent
	tag    string
	attrs  []any
	file   *os.File
}

// NewLogger creates a Logger writing to stdout at debug level.
func NewLogger() *Logger {
	return NewWriterLogger(os.Stdout, "debug")
}

// NewWriterLogger creates a Logger writing plain text to w.
func NewWriterLogger(w io.Writer, level string) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{sinks: []*slog.Logger{slog.New(h)}}
}

// NewLoggerWithOptions builds the production logger.
func NewLoggerWithOptions(opts LogOptions) (*Logger, error) {
	level := ParseLevel(opts.Level)
	l := &Logger{tag: opts.FluentTag}

	stdout := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
	})
	l.sinks = append(l.sinks, slog.New(stdout))

	if opts.FilePath != "" {
		if dir := filepath.Dir(opts.FilePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("logger: create log dir: %w", err)
			}
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: open %q: %w", opts.FilePath, err)
		}
		l.file = f
		l.sinks = append(l.sinks, slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	}

	if opts.FluentEnabled {
		if l.tag == "" {
			l.tag = "moto-scraper"
		}
		fc, err := fluent.New(fluent.Config{
			FluentHost: opts.FluentHost,
			FluentPort: opts.FluentPort,
			TagPrefix:  l.tag,
		})
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("logger: create fluent client: %w", err)
		}
		l.fluent = fc
	}

	return l, nil
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger that attaches key=value to every record.
func (l *Logger) With(key string, value any) *Logger {
	child := &Logger{
		fluent: l.fluent,
		tag:    l.tag,
		attrs:  append(append([]any{}, l.attrs...), key, value),
	}
	for _, s := range l.sinks {
		child.sinks = append(child.sinks, s.With(key, value))
	}
	return child
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ctx := context.Background()
	for _, s := range l.sinks {
		if s.Enabled(ctx, level) {
			s.Log(ctx, level, msg)
		}
	}
	if l.fluent != nil && level >= slog.LevelInfo {
		record := map[string]any{
			"level": level.String(),
			"msg":   msg,
			"time":  time.Now().Format(time.RFC3339),
		}
		for i := 0; i+1 < len(l.attrs); i += 2 {
			record[fmt.Sprint(l.attrs[i])] = l.attrs[i+1]
		}
		// Fluent Bit being down must never break a run.
		_ = l.fluent.Post("log", record)
	}
}

// Close releases the log file and the fluent connection.
func (l *Logger) Close() error {
	var err error
	if l.fluent != nil {
		err = l.fluent.Close()
		l.fluent = nil
	}
	if l.file != nil {
		if cerr := l.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		l.file = nil
	}
	return err
}
