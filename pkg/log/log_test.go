package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestMapLevelToZapLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		expected string
	}{
		{"debug level", LevelDebug, "debug"},
		{"info level", LevelInfo, "info"},
		{"progress level", LevelProgress, "info"},
		{"warn level", LevelWarn, "warn"},
		{"error level", LevelError, "error"},
		{"unknown level defaults to info", LogLevel("unknown"), "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapLevelToZapLevel(tt.level).String(); got != tt.expected {
				t.Errorf("mapLevelToZapLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" progress ", LevelProgress, false},
		{"", LevelProgress, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitWritesToConfiguredOutput(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelInfo, Output: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Info("published package", "registry", "https://registry.npmjs.org/")
	Debug("hidden at info level")
	_ = Sync()

	out := buf.String()
	if !strings.Contains(out, "published package") {
		t.Errorf("expected info message in output, got %q", out)
	}
	if !strings.Contains(out, "registry.npmjs.org") {
		t.Errorf("expected key-value field in output, got %q", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Errorf("debug message should be filtered at info level, got %q", out)
	}
}

func TestGetInitializesDefault(t *testing.T) {
	Reset()
	defer Reset()

	if Get() == nil {
		t.Fatal("Get() returned nil logger")
	}
	if Get() != Get() {
		t.Error("Get() should return the same logger instance")
	}
}

func TestWith(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelDebug, Output: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	With("package", "merge-release").Infow("bump decided", "bump", "minor")
	_ = Sync()

	if out := buf.String(); !strings.Contains(out, "merge-release") || !strings.Contains(out, "minor") {
		t.Errorf("expected contextual fields in output, got %q", out)
	}
}
