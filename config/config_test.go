package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.Audio.Mode != DefaultMode {
		t.Fatalf("mode = %q, want %q", cfg.Audio.Mode, DefaultMode)
	}
	if cfg.Store.Engine != DefaultEngine || cfg.Store.Path != DefaultStorePath {
		t.Fatalf("store defaults = %+v", cfg.Store)
	}
	if cfg.TickSecs != DefaultTickSecs {
		t.Fatalf("tick = %d, want %d", cfg.TickSecs, DefaultTickSecs)
	}
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
audio:
  mode: two_person
  device: "USB Microphone"
store:
  engine: json
  path: /tmp/vigil.json
server:
  enabled: true
  addr: 127.0.0.1:9000
webhook:
  url: https://example.org/hook
tick_seconds: 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.Mode != "two_person" || cfg.Audio.Device != "USB Microphone" {
		t.Fatalf("audio = %+v", cfg.Audio)
	}
	if cfg.Store.Engine != "json" || cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TickSecs != 30 {
		t.Fatalf("tick = %d", cfg.TickSecs)
	}
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := writeConfig(t, "audio:\n  mode: crowd\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown breathing mode accepted")
	}
}

func TestLoadRejectsBadEngine(t *testing.T) {
	path := writeConfig(t, "store:\n  engine: bolt\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown store engine accepted")
	}
}

func TestLoadRejectsBadWebhookURL(t *testing.T) {
	path := writeConfig(t, "webhook:\n  url: not-a-url\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed webhook URL accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_MODE", "two_person")
	t.Setenv("VIGIL_STORE_ENGINE", "json")
	path := writeConfig(t, "audio:\n  mode: single\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.Mode != "two_person" {
		t.Fatalf("env override lost: mode = %q", cfg.Audio.Mode)
	}
	if cfg.Store.Engine != "json" {
		t.Fatalf("env override lost: engine = %q", cfg.Store.Engine)
	}
}
