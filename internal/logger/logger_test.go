package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNamedLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf)
	if err := SetLevelString("info"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	Named("outbox").Info(context.Background(), "buffer full", Int("capacity", 50), Error(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{"component=outbox", "buffer full", "capacity=50", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf)
	defer SetLevelString("info")

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	Get().Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"", false},
		{"warning", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := SetLevelString(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetLevelString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
	SetLevelString("info")
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
