package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelInfo, "text")

	log.Debug("hidden")
	log.Info("hello", "user_id", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered:\n%s", out)
	}
	for _, want := range []string{"level=INFO", "msg=hello", "user_id=7"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelDebug, "json")
	log.Warn("careful", "path", "/api/v1/auth/login")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if line["msg"] != "careful" || line["level"] != "WARN" || line["path"] != "/api/v1/auth/login" {
		t.Fatalf("unexpected record: %v", line)
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing")
	if log.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("discard logger should not be enabled for errors")
	}
}
