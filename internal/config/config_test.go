package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.jsonc"))
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if s.ServerURL != DefaultServerURL {
		t.Fatalf("unexpected server url %q", s.ServerURL)
	}
	if s.ReconnectDelay() != 2*time.Second {
		t.Fatalf("unexpected reconnect delay %v", s.ReconnectDelay())
	}
}

func TestLoad_ParsesCommentsAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.jsonc")
	raw := `{
  // homelab box
  "server_url": "http://nas.local:8080/",
  "reconnect_delay_s": 5,
  "log_level": "DEBUG",
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.ServerURL != "http://nas.local:8080" {
		t.Fatalf("trailing slash not trimmed: %q", s.ServerURL)
	}
	if s.ReconnectDelay() != 5*time.Second {
		t.Fatalf("unexpected reconnect delay %v", s.ReconnectDelay())
	}
	if s.LogLevel != "debug" {
		t.Fatalf("log level not lowered: %q", s.LogLevel)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.jsonc")
	in := Settings{
		ServerURL:             "http://example.com:9000",
		ReconnectDelaySeconds: 3,
		LogLevel:              "warn",
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out != in {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", out, in)
	}
}

func TestNormalize_FillsZeroValues(t *testing.T) {
	s := Normalize(Settings{})
	if s.ServerURL != DefaultServerURL || s.ReconnectDelaySeconds != DefaultReconnectDelaySeconds || s.LogLevel != DefaultLogLevel {
		t.Fatalf("defaults not applied: %+v", s)
	}
}
