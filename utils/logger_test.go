package utils

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "info")

	l.Debug("hidden %d", 1)
	l.Info("page %d loaded", 3)
	l.With("component", "paginator").Warn("slow")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %q", out)
	}
	if !strings.Contains(out, "page 3 loaded") {
		t.Errorf("missing formatted info line: %q", out)
	}
	if !strings.Contains(out, "component=paginator") {
		t.Errorf("missing attached attribute: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scraper.log")
	l, err := NewLoggerWithOptions(LogOptions{Level: "info", FilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("run %s started", "abc")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "run abc started") {
		t.Errorf("log file missing record: %q", data)
	}
}
