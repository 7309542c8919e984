package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

const (
	DefaultServerURL             = "http://localhost:8080"
	DefaultReconnectDelaySeconds = 2
	DefaultLogLevel              = "info"
)

// Settings is the client configuration. The file is JSONC so users can keep
// comments next to the server URL they are pointing at.
type Settings struct {
	ServerURL             string `json:"server_url"`
	ReconnectDelaySeconds int    `json:"reconnect_delay_s,omitempty"`
	LogLevel              string `json:"log_level,omitempty"`
	LogDir                string `json:"log_dir,omitempty"`
}

func Defaults() Settings {
	return Settings{
		ServerURL:             DefaultServerURL,
		ReconnectDelaySeconds: DefaultReconnectDelaySeconds,
		LogLevel:              DefaultLogLevel,
	}
}

func Normalize(raw Settings) Settings {
	norm := raw
	norm.ServerURL = strings.TrimRight(strings.TrimSpace(norm.ServerURL), "/")
	if norm.ServerURL == "" {
		norm.ServerURL = DefaultServerURL
	}
	if norm.ReconnectDelaySeconds <= 0 {
		norm.ReconnectDelaySeconds = DefaultReconnectDelaySeconds
	}
	norm.LogLevel = strings.ToLower(strings.TrimSpace(norm.LogLevel))
	if norm.LogLevel == "" {
		norm.LogLevel = DefaultLogLevel
	}
	return norm
}

// ReconnectDelay converts the settings value into the duration the stream
// subscriber waits between reconnect attempts.
func (s Settings) ReconnectDelay() time.Duration {
	seconds := s.ReconnectDelaySeconds
	if seconds <= 0 {
		seconds = DefaultReconnectDelaySeconds
	}
	return time.Duration(seconds) * time.Second
}

// DefaultSettingsPath is ~/.config/nugs-queue/settings.jsonc, or a relative
// fallback when the home directory cannot be resolved.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("config", "settings.jsonc")
	}
	return filepath.Join(home, ".config", "nugs-queue", "settings.jsonc")
}

// Load reads settings from path. A missing file yields defaults, not an
// error, so first runs work without any setup.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return Normalize(s), nil
}

// Save writes settings atomically: temp file in the target directory, then
// rename over the destination.
func Save(path string, s Settings) error {
	data, err := json.MarshalIndent(Normalize(s), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings for %s: %w", path, err)
	}
	data = append(data, '\n')
	return writeBytes(path, data)
}

func writeBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".nugsq-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
