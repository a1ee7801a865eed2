// Package config loads vnengine settings from a YAML file and VNENGINE_*
// environment variables.
//
// Precedence, lowest first: built-in defaults, the YAML file, the
// environment. The result is validated before it is returned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vnengine/internal/compiler"
	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VNENGINE_"

// Config is the full set of host-side settings.
type Config struct {
	Resources ResourcesConfig `yaml:"resources" json:"resources" envPrefix:"RESOURCES_"`
	Limits    LimitsConfig    `yaml:"limits" json:"limits" envPrefix:"LIMITS_"`

	// PrefetchDepth is the lookahead window for asset hints; 0 disables them.
	PrefetchDepth int `yaml:"prefetch_depth" json:"prefetch_depth" env:"PREFETCH_DEPTH"`

	// HistoryLimit bounds the dialogue history.
	HistoryLimit int `yaml:"history_limit" json:"history_limit" env:"HISTORY_LIMIT"`

	// MaxSteps is the per-session call quota of the player.
	MaxSteps int `yaml:"max_steps" json:"max_steps" env:"MAX_STEPS"`

	// ExtCallPolicy is "resume" or "record".
	ExtCallPolicy string `yaml:"ext_call_policy" json:"ext_call_policy" env:"EXT_CALL_POLICY"`

	// Database is the session journal path. Empty disables journaling.
	Database string `yaml:"database" json:"database" env:"DATABASE"`
}

// ResourcesConfig mirrors engine.ResourceConfig.
type ResourcesConfig struct {
	MaxTextureMemory int64 `yaml:"max_texture_memory" json:"max_texture_memory" env:"MAX_TEXTURE_MEMORY"`
	MaxScriptBytes   int64 `yaml:"max_script_bytes" json:"max_script_bytes" env:"MAX_SCRIPT_BYTES"`
}

// LimitsConfig mirrors compiler.Limits.
type LimitsConfig struct {
	MaxEvents         int  `yaml:"max_events" json:"max_events" env:"MAX_EVENTS"`
	MaxTextLength     int  `yaml:"max_text_length" json:"max_text_length" env:"MAX_TEXT_LENGTH"`
	MaxLabelLength    int  `yaml:"max_label_length" json:"max_label_length" env:"MAX_LABEL_LENGTH"`
	MaxAssetLength    int  `yaml:"max_asset_length" json:"max_asset_length" env:"MAX_ASSET_LENGTH"`
	MaxCharacters     int  `yaml:"max_characters" json:"max_characters" env:"MAX_CHARACTERS"`
	AllowEmptySpeaker bool `yaml:"allow_empty_speaker" json:"allow_empty_speaker" env:"ALLOW_EMPTY_SPEAKER"`
}

// Default returns the built-in settings.
func Default() Config {
	res := engine.DefaultResourceConfig()
	lim := compiler.DefaultLimits()
	return Config{
		Resources: ResourcesConfig{
			MaxTextureMemory: res.MaxTextureMemory,
			MaxScriptBytes:   res.MaxScriptBytes,
		},
		Limits: LimitsConfig{
			MaxEvents:         lim.MaxEvents,
			MaxTextLength:     lim.MaxTextLength,
			MaxLabelLength:    lim.MaxLabelLength,
			MaxAssetLength:    lim.MaxAssetLength,
			MaxCharacters:     lim.MaxCharacters,
			AllowEmptySpeaker: lim.AllowEmptySpeaker,
		},
		PrefetchDepth: 0,
		HistoryLimit:  engine.DefaultHistoryLimit,
		MaxSteps:      player.DefaultMaxSteps,
		ExtCallPolicy: string(player.ExtCallResume),
	}
}

// LoadConfig builds a Config from defaults, the YAML file at path, and the
// environment. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg, rejecting unknown keys. An empty
// document leaves cfg unchanged.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func validateConfig(c Config) error {
	var errs []error
	nonNegative := func(name string, v int64) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", name, v))
		}
	}

	nonNegative("resources.max_texture_memory", c.Resources.MaxTextureMemory)
	nonNegative("resources.max_script_bytes", c.Resources.MaxScriptBytes)
	nonNegative("limits.max_events", int64(c.Limits.MaxEvents))
	nonNegative("limits.max_text_length", int64(c.Limits.MaxTextLength))
	nonNegative("limits.max_label_length", int64(c.Limits.MaxLabelLength))
	nonNegative("limits.max_asset_length", int64(c.Limits.MaxAssetLength))
	nonNegative("limits.max_characters", int64(c.Limits.MaxCharacters))
	nonNegative("prefetch_depth", int64(c.PrefetchDepth))
	nonNegative("history_limit", int64(c.HistoryLimit))
	nonNegative("max_steps", int64(c.MaxSteps))

	if _, err := player.ParseExtCallPolicy(c.ExtCallPolicy); err != nil {
		errs = append(errs, fmt.Errorf("ext_call_policy: %w", err))
	}
	return errors.Join(errs...)
}

// ResourceConfig returns the engine resource budgets.
func (c Config) ResourceConfig() engine.ResourceConfig {
	return engine.ResourceConfig{
		MaxTextureMemory: c.Resources.MaxTextureMemory,
		MaxScriptBytes:   c.Resources.MaxScriptBytes,
	}
}

// CompilerLimits returns the structural limits for loading scripts.
func (c Config) CompilerLimits() compiler.Limits {
	return compiler.Limits{
		MaxEvents:         c.Limits.MaxEvents,
		MaxTextLength:     c.Limits.MaxTextLength,
		MaxLabelLength:    c.Limits.MaxLabelLength,
		MaxAssetLength:    c.Limits.MaxAssetLength,
		MaxCharacters:     c.Limits.MaxCharacters,
		AllowEmptySpeaker: c.Limits.AllowEmptySpeaker,
	}
}

// Policy returns the parsed ext_call policy. It falls back to resume for
// a Config that was never validated.
func (c Config) Policy() player.ExtCallPolicy {
	p, err := player.ParseExtCallPolicy(c.ExtCallPolicy)
	if err != nil {
		return player.ExtCallResume
	}
	return p
}

// EngineOptions returns the interpreter options for this config.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithLimits(c.CompilerLimits()),
		engine.WithResourceConfig(c.ResourceConfig()),
		engine.WithPrefetchDepth(c.PrefetchDepth),
		engine.WithHistoryLimit(c.HistoryLimit),
	}
}

// PlayerOptions returns the player options for this config, including
// EngineOptions.
func (c Config) PlayerOptions() []player.Option {
	return []player.Option{
		player.WithMaxSteps(c.MaxSteps),
		player.WithExtCallPolicy(c.Policy()),
		player.WithEngineOptions(c.EngineOptions()...),
	}
}
