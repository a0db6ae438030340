package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Extractor.MaxConcurrent == 0 {
		cfg.Extractor.MaxConcurrent = 2
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/voices.json"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.ElevenLabs.APIKey == "" {
		errs = append(errs, errors.New("elevenlabs.api_key is required"))
	}
	if cfg.ElevenLabs.BaseURL != "" {
		if err := validateHTTPURL("elevenlabs.base_url", cfg.ElevenLabs.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Extractor.ConverterURL != "" {
		if err := validateHTTPURL("extractor.converter_url", cfg.Extractor.ConverterURL); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Extractor.MaxDownloadBytes < 0 {
		errs = append(errs, fmt.Errorf("extractor.max_download_bytes %d must not be negative", cfg.Extractor.MaxDownloadBytes))
	}
	if cfg.Extractor.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("extractor.max_concurrent %d must not be negative", cfg.Extractor.MaxConcurrent))
	}
	if cfg.Extractor.PageLoadTimeout < 0 {
		errs = append(errs, errors.New("extractor.page_load_timeout must not be negative"))
	}
	if cfg.Extractor.DownloadTimeout < 0 {
		errs = append(errs, errors.New("extractor.download_timeout must not be negative"))
	}

	// Soft problems are logged, not fatal.
	if !cfg.Extractor.StealthEnabled() {
		slog.Warn("extractor.stealth is disabled; converter sites may block automated sessions")
	}
	if cfg.Extractor.MaxDownloadBytes == 0 {
		slog.Warn("extractor.max_download_bytes is unset; oversized samples will be uploaded unchecked")
	}

	return errors.Join(errs...)
}

// validateHTTPURL rejects values that do not parse as absolute http(s) URLs.
func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is not a valid URL: %w", field, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q must use http or https", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q is missing a host", field, raw)
	}
	return nil
}

// SlogLevel maps the configured [LogLevel] to a [slog.Level].
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
