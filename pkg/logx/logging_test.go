package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	l.Info("dropped", String("k", "v"))
	l.With(Int("n", 1)).Error("dropped")
}

func TestWithFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := newWriter(&buf, "debug", LevelDebug).With(String("comp", "test"))
	l.Info("hello", Int("n", 3))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if m["comp"] != "test" || m["message"] != "hello" || m["n"] != float64(3) {
		t.Fatalf("unexpected line: %v", m)
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newWriter(&buf, "warn", LevelDebug)
	l.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn: %q", buf.String())
	}
	if l.Enabled(LevelInfo) {
		t.Fatalf("Enabled(info) = true at warn level")
	}
}

func TestUnknownLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	l := newWriter(&buf, "loud", LevelWarn)
	l.Info("quiet")
	l.Warn("kept")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("fallback level not applied: %q", buf.String())
	}
}

func TestFormatLogLine(t *testing.T) {
	t.Parallel()
	got := formatLogLine([]byte(`{"level":"warn","message":"cycle failed","time":"x","comp":"tracker","cycle":"abc"}`))
	want := "[WARN] cycle failed\n- comp=tracker\n- cycle=abc"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := formatLogLine([]byte("not json\n")); got != "not json" {
		t.Fatalf("raw fallback: %q", got)
	}
	if got := truncate(strings.Repeat("a", 20), 12); got != "aaaaaaaaa..." {
		t.Fatalf("truncate: %q", got)
	}
}
