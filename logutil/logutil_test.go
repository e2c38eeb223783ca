package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	slog.SetDefault(NewLogger(&buf, slog.LevelDebug))
	if TraceEnabled() {
		t.Fatal("trace enabled at debug level")
	}

	Trace("hidden", "k", "v")
	if buf.Len() != 0 {
		t.Fatalf("unexpected output %q", buf.String())
	}

	slog.SetDefault(NewLogger(&buf, LevelTrace))
	if !TraceEnabled() {
		t.Fatal("trace disabled at trace level")
	}

	Trace("shown", "k", "v")
	out := buf.String()
	for _, want := range []string{"level=TRACE", "msg=shown", "k=v", "source=logutil_test.go:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
