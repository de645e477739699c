package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDefaultLoggerRoutesByLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWriterLogger(&out, &errOut)

	l.Info("analysis started", Fields{"track": "a"})
	l.Warn("low confidence")
	l.Error(errors.New("boom"), "stage failed")

	if !strings.Contains(out.String(), "[INFO] analysis started track=a") {
		t.Errorf("stdout = %q, want info line with field", out.String())
	}
	if !strings.Contains(errOut.String(), "[WARN] low confidence") {
		t.Errorf("stderr = %q, want warn line", errOut.String())
	}
	if !strings.Contains(errOut.String(), "[ERROR] stage failed: boom") {
		t.Errorf("stderr = %q, want error line", errOut.String())
	}
}

func TestDefaultLoggerLevelFilter(t *testing.T) {
	var out bytes.Buffer
	l := NewWriterLogger(&out, &out)
	l.Debug("hidden")
	if out.Len() != 0 {
		t.Fatalf("debug written at info level: %q", out.String())
	}
	l.SetLevel(DebugLevel)
	l.Debug("shown")
	if !strings.Contains(out.String(), "shown") {
		t.Errorf("debug not written after SetLevel(DebugLevel)")
	}
}

func TestWithFieldsSortedAndMerged(t *testing.T) {
	var out bytes.Buffer
	l := NewWriterLogger(&out, &out).WithFields(Fields{"component": "monitor"})
	l.Info("tick", Fields{"b": 2, "a": 1})

	got := strings.TrimSpace(out.String())
	want := "[INFO] tick a=1 b=2 component=monitor"
	if got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestWithContextFields(t *testing.T) {
	var out bytes.Buffer
	ctx := ContextWithFields(context.Background(), Fields{"track_id": "x"})
	ctx = ContextWithFields(ctx, Fields{"stage": "key"})

	NewWriterLogger(&out, &out).WithContext(ctx).Info("done")
	if !strings.Contains(out.String(), "stage=key track_id=x") {
		t.Errorf("line = %q, want context fields", out.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"WARN":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetGlobalLoggerNil(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	if _, ok := GetGlobalLogger().(*NoOpLogger); !ok {
		t.Errorf("global logger = %T, want *NoOpLogger", GetGlobalLogger())
	}
}
