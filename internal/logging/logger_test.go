package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONWithProfileFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fzd.log")

	logger, err := New(path, "work", zapcore.InfoLevel)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("chat resumed", zap.String("chat_id", "u1+u2"))
	logger.Debug("dropped below level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["profile"] != "work" {
		t.Errorf("profile = %v, want work", entry["profile"])
	}
	if entry["chat_id"] != "u1+u2" {
		t.Errorf("chat_id = %v", entry["chat_id"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("missing ts field")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("OrNop should pass through a non-nil logger")
	}
}
