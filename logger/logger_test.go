package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSLogLoggerAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewSLogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Info("decision made", "allowed", true, "group", "g1", "rank", 2)
	out := buf.String()
	for _, want := range []string{"decision made", "allowed=true", "group=g1", "rank=2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}

	// A trailing key with no value is dropped, not rendered as garbage.
	buf.Reset()
	l.Warn("odd pairs", "key")
	if out := buf.String(); strings.Contains(out, "key=") {
		t.Fatalf("dangling key must be dropped: %q", out)
	}

	buf.Reset()
	l.Debug("debug line")
	l.Error("error line")
	if out := buf.String(); !strings.Contains(out, "debug line") || !strings.Contains(out, "error line") {
		t.Fatalf("level methods lost output: %q", out)
	}
}

func TestNullLoggerIsInert(t *testing.T) {
	var l Logger = NewNullLogger()
	l.Debug("a")
	l.Info("b", "k", "v")
	l.Warn("c")
	l.Error("d", "err", nil)
}
