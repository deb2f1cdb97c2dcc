// ABOUTME: Configuration loading and parsing for tictac
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config file location.
const EnvConfigPath = "TICTAC_CONFIG"

// Config represents the complete tictac configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Store   StoreConfig   `yaml:"store" toml:"store"`
	Game    GameConfig    `yaml:"game" toml:"game"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	HTTPAddr           string        `yaml:"http_addr" toml:"http_addr"`
	IdempotencyTTL     time.Duration `yaml:"-" toml:"-"`
	IdempotencyMaxKeys int           `yaml:"idempotency_max_keys" toml:"idempotency_max_keys"`

	// Raw string value for unmarshaling
	IdempotencyTTLRaw string `yaml:"idempotency_ttl" toml:"idempotency_ttl"`
}

// StoreConfig selects the key-value backend
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite, sqlite3, badger, memory
	Path   string `yaml:"path" toml:"path"`
}

// GameConfig holds the keys and encoding of the persisted game
type GameConfig struct {
	Namespace      string `yaml:"namespace" toml:"namespace"`
	StepKey        string `yaml:"step_key" toml:"step_key"`
	HistoryKey     string `yaml:"history_key" toml:"history_key"`
	Codec          string `yaml:"codec" toml:"codec"` // json, yaml
	ResetOnCorrupt bool   `yaml:"reset_on_corrupt" toml:"reset_on_corrupt"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:           "127.0.0.1:8080",
			IdempotencyTTL:     5 * time.Minute,
			IdempotencyTTLRaw:  "5m",
			IdempotencyMaxKeys: 1024,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "~/.local/share/tictac/tictac.db",
		},
		Game: GameConfig{
			StepKey:    "ttt-step",
			HistoryKey: "ttt-hist",
			Codec:      "json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML. Keys absent
// from the file keep their Default values.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.Store.Path = expandHome(cfg.Store.Path)
		return cfg, nil
	}
	return cfg, err
}

// Path returns the config file location: $TICTAC_CONFIG, then
// $XDG_CONFIG_HOME/tictac/config.yaml, then ~/.config/tictac/config.yaml.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tictac", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "tictac", "config.yaml")
}

// Write saves cfg as YAML at path, creating parent directories. An existing
// file is left alone and reported as an error.
func Write(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

var (
	knownDrivers   = map[string]bool{"sqlite": true, "sqlite3": true, "badger": true, "memory": true}
	knownCodecs    = map[string]bool{"json": true, "yaml": true}
	knownLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	knownFormats   = map[string]bool{"text": true, "json": true}
	namespaceRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]*$`)
)

// ValidateNamespace rejects game names that could collide with another
// game's store keys. The empty name is valid and selects the default game.
func ValidateNamespace(ns string) error {
	if !namespaceRegex.MatchString(ns) {
		return fmt.Errorf("%q may only hold letters, digits, '.', '_' and '-'", ns)
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.IdempotencyTTL < 0 {
		return fmt.Errorf("server.idempotency_ttl must not be negative")
	}
	if c.Server.IdempotencyMaxKeys < 0 {
		return fmt.Errorf("server.idempotency_max_keys must not be negative")
	}

	if !knownDrivers[c.Store.Driver] {
		return fmt.Errorf("store.driver %q is not one of sqlite, sqlite3, badger, memory", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
	}

	if err := ValidateNamespace(c.Game.Namespace); err != nil {
		return fmt.Errorf("game.namespace: %w", err)
	}
	if c.Game.StepKey == "" || c.Game.HistoryKey == "" {
		return fmt.Errorf("game.step_key and game.history_key are required")
	}
	if c.Game.StepKey == c.Game.HistoryKey {
		return fmt.Errorf("game.step_key and game.history_key must differ")
	}
	if !knownCodecs[c.Game.Codec] {
		return fmt.Errorf("game.codec %q is not one of json, yaml", c.Game.Codec)
	}

	if !knownLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if !knownFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Server.IdempotencyTTLRaw != "" {
		d, err := time.ParseDuration(cfg.Server.IdempotencyTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing idempotency_ttl %q: %w", cfg.Server.IdempotencyTTLRaw, err)
		}
		cfg.Server.IdempotencyTTL = d
	}
	return nil
}
