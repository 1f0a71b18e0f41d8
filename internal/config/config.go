// Package config loads harvest settings from defaults, a YAML file, HARVEST_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// FileName is the config file looked up when none is given.
	FileName = "harvest.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "HARVEST_"
	// EnvConfig names a config file explicitly.
	EnvConfig = EnvPrefix + "CONFIG"
)

// Defaults
const (
	DefaultBaseURL     = "https://api.arboreal.se"
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 1
	DefaultOutput      = "arboreal_data.zip"
	DefaultAddr        = ":8080"
	DefaultLogFormat   = "text"
)

// S3Config configures archive uploads.
type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	PathStyle bool   `koanf:"path_style"`
	Prefix    string `koanf:"prefix"`
}

// Enabled reports whether uploads have somewhere to go.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// ServerConfig configures `harvest serve`.
type ServerConfig struct {
	Addr           string   `koanf:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Config is the resolved configuration.
type Config struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	Concurrency int           `koanf:"concurrency"`
	Verbose     bool          `koanf:"verbose"`
	LogFormat   string        `koanf:"log_format"`
	Output      string        `koanf:"output"`
	SQLite      string        `koanf:"sqlite"`
	S3          S3Config      `koanf:"s3"`
	Server      ServerConfig  `koanf:"server"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-"`
}

// flagKeys maps flag names to config keys. Flags not listed are command
// options and never reach the config.
var flagKeys = map[string]string{
	"api-key":     "api_key",
	"base-url":    "base_url",
	"timeout":     "timeout",
	"concurrency": "concurrency",
	"verbose":     "verbose",
	"log-format":  "log_format",
	"out":         "output",
	"sqlite":      "sqlite",
	"addr":        "server.addr",
}

// envSections are nested config blocks addressable from the environment,
// e.g. HARVEST_S3_BUCKET -> s3.bucket.
var envSections = []string{"s3", "server"}

func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, section := range envSections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// listKeys hold comma-separated values when set from the environment.
var listKeys = map[string]bool{"server.allowed_origins": true}

func envValue(name, value string) (string, any) {
	key := envKey(name)
	if key == "config" {
		return "", nil
	}
	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

// Discover finds the config file using priority: env > flag > walk-up > XDG.
// It returns "" when there is none, which is not an error.
func Discover(explicit string) (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("config not found at %s: %s", EnvConfig, envPath)
	}

	// 2. CLI flag
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("config not found at --config path: %s", explicit)
	}

	// 3. Walk up from CWD
	if dir, err := os.Getwd(); err == nil {
		for {
			candidate := filepath.Join(dir, FileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 4. XDG fallback
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".config")
		}
	}
	if base != "" {
		xdgPath := filepath.Join(base, "harvest", FileName)
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}
	return "", nil
}

// Load resolves the configuration. Precedence (highest to lowest):
// flags > env vars > config file > defaults. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"base_url":    DefaultBaseURL,
		"timeout":     DefaultTimeout.String(),
		"concurrency": DefaultConcurrency,
		"verbose":     false,
		"log_format":  DefaultLogFormat,
		"output":      DefaultOutput,
		"server.addr": DefaultAddr,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	path, err := Discover(cfgFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url must not be empty"))
	}
	return errors.Join(errs...)
}
