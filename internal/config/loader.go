package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidNames lists known implementation names per component kind.
// Used by [Validate] to warn about unrecognised names.
var ValidNames = map[string][]string{
	"engine": {"whisper-native", "whisper-server", "mock"},
	"source": {"file", "stream", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateName("engine", cfg.Engine.Name)
	validateName("source", cfg.Source.Name)

	switch cfg.Engine.Name {
	case "whisper-native":
		if cfg.Engine.ModelPath == "" {
			errs = append(errs, errors.New("engine.model_path is required for whisper-native"))
		}
	case "whisper-server":
		if cfg.Engine.BaseURL == "" {
			errs = append(errs, errors.New("engine.base_url is required for whisper-server"))
		}
	}

	switch cfg.Source.Name {
	case "file":
		if cfg.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for the file source"))
		}
	case "stream":
		if cfg.Source.ListenAddr == "" {
			errs = append(errs, errors.New("source.listen_addr is required for the stream source"))
		}
	}

	seg := cfg.Segmenter
	if seg.SilenceMs < 0 || seg.InferenceIntervalMs < 0 || seg.MinInferFrames < 0 ||
		seg.MaxSegmentFrames < 0 || seg.MaxFrames < 0 {
		errs = append(errs, errors.New("segmenter values must not be negative"))
	}
	if seg.VoiceThreshold < 0 || seg.VoiceThreshold > 1 {
		errs = append(errs, fmt.Errorf("segmenter.voice_threshold %.3f is out of range [0, 1]", seg.VoiceThreshold))
	}
	if seg.MaxSegmentFrames > 0 && seg.MaxFrames > 0 && seg.MaxSegmentFrames > seg.MaxFrames {
		slog.Warn("segmenter.max_segment_frames exceeds max_frames; the length safety can never trip before eviction",
			"max_segment_frames", seg.MaxSegmentFrames,
			"max_frames", seg.MaxFrames,
		)
	}

	if cfg.Renderer.CharsPerLine < 0 {
		errs = append(errs, errors.New("renderer.chars_per_line must not be negative"))
	}

	if cfg.Translate.Provider != "" && cfg.Translate.TargetLanguage == "" {
		errs = append(errs, errors.New("translate.target_language is required when translate.provider is set"))
	}

	if cfg.Archive.PostgresDSN == "" && len(cfg.Archive.Glossary) > 0 {
		slog.Warn("archive.glossary is set without archive.postgres_dsn; corrections apply to the in-memory archive only")
	}

	return errors.Join(errs...)
}

// validateName logs a warning if name is non-empty and not found in the
// [ValidNames] list for the given kind.
func validateName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown implementation name — may be a typo or third-party registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
