package shared

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		name  string
		level string
		want  log.Level
	}{
		{name: "debug", level: "debug", want: log.DebugLevel},
		{name: "mixed case", level: "WaRn", want: log.WarnLevel},
		{name: "surrounding whitespace", level: "  error ", want: log.ErrorLevel},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.level)
			if err != nil {
				t.Fatalf("ParseLogLevel() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("unknown level", func(t *testing.T) {
		if _, err := ParseLogLevel("loud"); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := WithLogger(NewLogger(&buf), "session", "abc")
	logger.Info("opened")

	out := buf.String()
	if !strings.Contains(out, "session=abc") {
		t.Errorf("expected child logger fields in output, got %q", out)
	}
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := GenerateID()
		if len(id) != 36 {
			t.Fatalf("expected 36 character uuid, got %q", id)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
