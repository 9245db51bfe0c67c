package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Warn("shown ", "warn")
	log.Error("shown error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains messages below level: %s", out)
	}
	if !strings.Contains(out, `"message":"shown warn"`) {
		t.Errorf("warn message missing: %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("error level missing: %s", out)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf).With("run_id", "r-1")
	log.Debug("checking")

	if !strings.Contains(buf.String(), `"run_id":"r-1"`) {
		t.Errorf("field missing: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"WARNING": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
