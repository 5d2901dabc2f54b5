package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_Writer(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Writer: &buf, Level: "warn"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer closer.Close()

	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, "visible") {
		t.Errorf("Expected structured warn log, got %s", out)
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentcore.log")
	log, closer, err := New(Options{File: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	log.Info().Msg("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected log line in file, got %s", data)
	}
}

func TestNew_BadFile(t *testing.T) {
	_, closer, err := New(Options{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	if err == nil {
		t.Fatal("Expected error for unwritable path")
	}
	if closer == nil {
		t.Error("Closer must never be nil")
	}
}
