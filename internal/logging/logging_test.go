package logging

import (
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf strings.Builder
	log := New(Config{Level: LevelWarn, Output: &buf, Prefix: "test"})

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept %d", 1)
	log.Error("kept %d", 2)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("low-severity lines leaked: %q", out)
	}
	if !strings.Contains(out, "kept 1") || !strings.Contains(out, "kept 2") {
		t.Errorf("high-severity lines missing: %q", out)
	}
}

func TestFieldsAreStableAndInherited(t *testing.T) {
	var buf strings.Builder
	log := New(Config{Level: LevelDebug, Output: &buf, Prefix: ""})

	child := log.WithComponent("engine").WithField("gen", 3)
	child.Info("edit applied")

	out := buf.String()
	if !strings.Contains(out, "{component=engine, gen=3}") {
		t.Errorf("fields not rendered in sorted order: %q", out)
	}

	buf.Reset()
	log.Info("no fields")
	if strings.Contains(buf.String(), "{") {
		t.Errorf("parent logger must not inherit child fields: %q", buf.String())
	}
}
