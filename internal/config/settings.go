// Package config loads and saves the application settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"serial-app/internal/session"
)

const configDirName = "serial-app"
const settingsFileName = "settings.json"

// Settings are the tunables read at startup.
type Settings struct {
	ReadTimeoutMS   int    `json:"read_timeout_ms"`
	WriteTimeoutMS  int    `json:"write_timeout_ms"`
	CloseTimeoutMS  int    `json:"close_timeout_ms"`
	InboxCapacity   int    `json:"inbox_capacity"`
	ReadBufferSize  int    `json:"read_buffer_size"`
	LogLevel        string `json:"log_level"`
	DefaultBaudRate int    `json:"default_baud_rate"`
	MaxLogLines     int    `json:"max_log_lines"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	o := session.DefaultOptions()
	return Settings{
		ReadTimeoutMS:   int(o.ReadTimeout / time.Millisecond),
		WriteTimeoutMS:  int(o.WriteTimeout / time.Millisecond),
		CloseTimeoutMS:  int(o.CloseTimeout / time.Millisecond),
		InboxCapacity:   o.InboxCapacity,
		ReadBufferSize:  o.ReadBufferSize,
		LogLevel:        "info",
		DefaultBaudRate: 9600,
		MaxLogLines:     10000,
	}
}

// SessionOptions converts the settings into session options.
func (s Settings) SessionOptions() session.Options {
	return session.Options{
		ReadTimeout:    time.Duration(s.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:   time.Duration(s.WriteTimeoutMS) * time.Millisecond,
		CloseTimeout:   time.Duration(s.CloseTimeoutMS) * time.Millisecond,
		InboxCapacity:  s.InboxCapacity,
		ReadBufferSize: s.ReadBufferSize,
	}
}

// fill replaces zero or negative values with defaults.
func (s Settings) fill() Settings {
	d := Defaults()
	if s.ReadTimeoutMS <= 0 {
		s.ReadTimeoutMS = d.ReadTimeoutMS
	}
	if s.WriteTimeoutMS <= 0 {
		s.WriteTimeoutMS = d.WriteTimeoutMS
	}
	if s.CloseTimeoutMS <= 0 {
		s.CloseTimeoutMS = d.CloseTimeoutMS
	}
	if s.InboxCapacity <= 0 {
		s.InboxCapacity = d.InboxCapacity
	}
	if s.ReadBufferSize <= 0 {
		s.ReadBufferSize = d.ReadBufferSize
	}
	if s.LogLevel == "" {
		s.LogLevel = d.LogLevel
	}
	if s.DefaultBaudRate <= 0 {
		s.DefaultBaudRate = d.DefaultBaudRate
	}
	if s.MaxLogLines <= 0 {
		s.MaxLogLines = d.MaxLogLines
	}
	return s
}

// Dir returns the path to the app's config directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	dir := filepath.Join(base, configDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return dir, nil
}

// Path returns the settings file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFileName), nil
}

// Load reads the settings file from the config dir.
func Load() (Settings, error) {
	path, err := Path()
	if err != nil {
		return Defaults(), err
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from path. A missing file yields the defaults.
func LoadFrom(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("failed to parse settings: %w", err)
	}
	return s.fill(), nil
}

// Save writes the settings file to the config dir.
func Save(s Settings) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(path, s)
}

// SaveTo writes settings to path.
func SaveTo(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
