package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLoggerLevelIsAdjustable(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	log := InitLogger(Options{Level: "warn", Format: "json", Output: &buf})
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info suppressed at warn, got %q", buf.String())
	}
	SetLevel("debug")
	NewComponentLogger(log, "session").Debug("visible")
	if !strings.Contains(buf.String(), `"component":"session"`) {
		t.Fatalf("expected component attribute, got %q", buf.String())
	}
	if Level() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", Level())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
