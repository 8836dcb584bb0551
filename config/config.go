// Package config loads editor bridge settings from a single file.
//
// The file format follows the extension: .yaml/.yml, .toml, or
// .json/.jsonc (JSON with comments and trailing commas). Fields missing
// from the file keep their Default values. The path comes from the
// command line or the EDITORBRIDGE_CONFIG environment variable; there is
// no discovery.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/editor-bridge/errors"
)

// EnvVar names the environment variable consulted by Load.
const EnvVar = "EDITORBRIDGE_CONFIG"

// Host kinds.
const (
	HostGoja = "goja"
	HostWasm = "wasm"
)

// Config is the complete bridge configuration.
type Config struct {
	Log    LogConfig    `yaml:"log" toml:"log" json:"log"`
	Host   HostConfig   `yaml:"host" toml:"host" json:"host"`
	Editor EditorConfig `yaml:"editor" toml:"editor" json:"editor"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn or error.
	Level string `yaml:"level" toml:"level" json:"level"`

	// Development selects zap's development encoder.
	Development bool `yaml:"development" toml:"development" json:"development"`
}

// HostConfig selects and configures the script host.
type HostConfig struct {
	// Kind is "goja" or "wasm".
	Kind string `yaml:"kind" toml:"kind" json:"kind"`

	// Script is an engine script for the goja host. Empty selects the
	// built-in headless engine.
	Script string `yaml:"script" toml:"script" json:"script"`

	// Module is the engine module for the wasm host.
	Module string `yaml:"module" toml:"module" json:"module"`

	// MemoryLimitPages caps wasm guest memory in 64KiB pages.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" toml:"memory_limit_pages" json:"memory_limit_pages"`

	// WASI instantiates wasi_snapshot_preview1 for the wasm guest.
	WASI bool `yaml:"wasi" toml:"wasi" json:"wasi"`

	// Envelope is the wasm request encoding, "json" or "cbor".
	Envelope string `yaml:"envelope" toml:"envelope" json:"envelope"`
}

// EditorConfig holds initial control properties.
type EditorConfig struct {
	Language       string   `yaml:"language" toml:"language" json:"language"`
	ReadOnly       bool     `yaml:"read_only" toml:"read_only" json:"read_only"`
	GlyphMargin    bool     `yaml:"glyph_margin" toml:"glyph_margin" json:"glyph_margin"`
	Theme          string   `yaml:"theme" toml:"theme" json:"theme"`
	TypeNamespaces []string `yaml:"type_namespaces" toml:"type_namespaces" json:"type_namespaces"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Host: HostConfig{
			Kind:             HostGoja,
			MemoryLimitPages: 256,
		},
		Editor: EditorConfig{
			Language: "plaintext",
			Theme:    "Default",
		},
	}
}

// Load reads the file named by EDITORBRIDGE_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over Default and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, path)
	}
	cfg := Default()
	if err := cfg.decode(filepath.Ext(path), data); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindDecode, err, path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the given format ("yaml", "toml" or "json") over
// Default and validates the result.
func Parse(format string, data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode("."+format, data); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindDecode, err, format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".toml":
		_, err := toml.Decode(string(data), c)
		return err
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level)
	}
	switch c.Host.Kind {
	case HostGoja:
	case HostWasm:
		if c.Host.Module == "" {
			return errors.InvalidInput(errors.PhaseConfig, "host.module is required for the wasm host")
		}
		switch c.Host.Envelope {
		case "", "json", "cbor":
		default:
			return invalid("host.envelope", c.Host.Envelope)
		}
	default:
		return invalid("host.kind", c.Host.Kind)
	}
	switch c.Editor.Theme {
	case "Default", "Light", "Dark":
	default:
		return invalid("editor.theme", c.Editor.Theme)
	}
	if c.Editor.Language == "" {
		return errors.InvalidInput(errors.PhaseConfig, "editor.language must not be empty")
	}
	return nil
}

func invalid(field, value string) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Name(field).
		Value(value).
		Detail("invalid value").
		Build()
}

// Logger builds a zap logger for the configured level and encoder.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, invalid("log.level", c.Log.Level)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
