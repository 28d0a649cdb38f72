package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_WritesJSONToPath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.json")
	l, err := New(Config{Level: "debug", OutputPaths: []string{out}})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("hello")
	_ = l.Sync()

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("not json: %q", b)
	}
	if rec["message"] != "hello" || rec["level"] != "debug" {
		t.Fatalf("record=%v", rec)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
		t.Fatalf("cfg=%+v", cfg)
	}
}
