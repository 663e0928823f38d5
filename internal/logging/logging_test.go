package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l, c, err := New(Config{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	l.Info("hidden")
	l.Warn("shown", "id", "a1")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn: %s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "id=a1") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestNewJSONWithFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "fetchd.log")
	cfg := Defaults()
	cfg.Format = "json"
	cfg.File = file

	l, c, err := New(cfg, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello", "n", 1)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("stdout is not json: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "hello" {
		t.Fatalf("msg = %v", rec["msg"])
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Equal(b, buf.Bytes()) {
		t.Fatalf("file and stdout differ:\n%s\n%s", b, buf.Bytes())
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, _, err := New(Config{Level: "loud"}, nil); err == nil {
		t.Fatalf("expected level error")
	}
	if _, _, err := New(Config{Level: "info", Format: "xml"}, nil); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, " warn ": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}
