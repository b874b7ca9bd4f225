package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"WARNING", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"unknown", zapcore.InfoLevel},
	}

	for _, tc := range tests {
		if got := parseLevel(tc.level); got != tc.want {
			t.Fatalf("parseLevel(%q)=%v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newWithWriter("info", buf)

	log.Info("hello", map[string]any{"k": "v", "n": 3})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to parse json: %v", err)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected level info, got %v", entry["level"])
	}
	if entry["msg"] != "hello" {
		t.Fatalf("expected msg hello, got %v", entry["msg"])
	}
	if entry["k"] != "v" {
		t.Fatalf("expected field k=v, got %v", entry["k"])
	}
	if entry["n"] != float64(3) {
		t.Fatalf("expected field n=3, got %v", entry["n"])
	}
	if entry["ts"] == nil || entry["ts"] == "" {
		t.Fatalf("expected ts to be set")
	}
}

func TestLoggerSkipsDebugBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newWithWriter("info", buf)

	log.Debug("debug", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	log.SetLevel("debug")
	log.Debug("debug", nil)
	if buf.Len() == 0 {
		t.Fatalf("expected output after lowering level")
	}
}

func TestLoggerHookReceivesEntry(t *testing.T) {
	log := newWithWriter("info", io.Discard)

	ch := make(chan map[string]any, 1)
	log.AddHook(func(entry map[string]any) {
		ch <- entry
	})

	log.Warn("warn-msg", map[string]any{"x": "y"})

	select {
	case entry := <-ch:
		if entry["msg"] != "warn-msg" {
			t.Fatalf("expected msg warn-msg, got %v", entry["msg"])
		}
		if entry["level"] != "warn" {
			t.Fatalf("expected level warn, got %v", entry["level"])
		}
		if entry["x"] != "y" {
			t.Fatalf("expected field x=y, got %v", entry["x"])
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("expected hook to be called")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var log *Logger
	log.Info("ignored", map[string]any{"k": "v"})
	log.AddHook(func(map[string]any) {})
	if err := log.Sync(); err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}
}

func TestNopRunsHooks(t *testing.T) {
	log := Nop()
	called := false
	log.AddHook(func(map[string]any) { called = true })
	log.Debug("x", nil)
	if !called {
		t.Fatalf("expected hook on nop logger")
	}
}
