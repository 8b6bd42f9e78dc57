package input

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNullSinkLogsAndSucceeds(t *testing.T) {
	var buf bytes.Buffer
	n := Null{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	if err := n.Click(10, 20, LeftButton); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.KeyTap("esc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Simulated input: click") || !strings.Contains(buf.String(), "key=esc") {
		t.Errorf("expected simulated input records, got %q", buf.String())
	}

	var silent Null
	if err := silent.KeyDown("w"); err != nil {
		t.Errorf("nil logger should still succeed: %v", err)
	}
}
