// Package config provides the configuration schema and loader for the voice
// cloning service. All values are immutable after process start.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration is a [time.Duration] that unmarshals from YAML strings like
// "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Store      StoreConfig      `yaml:"store"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: "info".
	LogLevel LogLevel `yaml:"log_level"`
}

// ElevenLabsConfig holds credentials and tuning for the cloning upstream.
type ElevenLabsConfig struct {
	// APIKey authenticates against the ElevenLabs API. Required.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the default API endpoint. Leave empty for production.
	BaseURL string `yaml:"base_url"`

	// Model selects the synthesis model. Leave empty for the default.
	Model string `yaml:"model"`
}

// ExtractorConfig tunes the browser-driven audio extractor.
type ExtractorConfig struct {
	// Stealth enables the anti-detection evasion table. Default: true.
	Stealth *bool `yaml:"stealth"`

	// ConverterURL is the converter site driven by the browser. Leave empty
	// for the built-in default.
	ConverterURL string `yaml:"converter_url"`

	// TempDir is where extracted audio samples are staged. Default: the
	// OS temp directory.
	TempDir string `yaml:"temp_dir"`

	// MaxDownloadBytes rejects produced audio files larger than this.
	// Zero means no limit.
	MaxDownloadBytes int64 `yaml:"max_download_bytes"`

	// PageLoadTimeout bounds converter page navigation and element waits.
	PageLoadTimeout Duration `yaml:"page_load_timeout"`

	// DownloadTimeout bounds the wait for the converted audio file.
	DownloadTimeout Duration `yaml:"download_timeout"`

	// MaxConcurrent caps simultaneous browser sessions. Default: 2.
	MaxConcurrent int64 `yaml:"max_concurrent"`
}

// StealthEnabled resolves the Stealth tri-state; unset means enabled.
func (e ExtractorConfig) StealthEnabled() bool {
	return e.Stealth == nil || *e.Stealth
}

// StoreConfig locates the voice registry snapshot.
type StoreConfig struct {
	// Path is the JSON snapshot file. Default: "data/voices.json".
	Path string `yaml:"path"`
}
