// Package config loads library settings from defaults, an optional YAML
// file, LIBRARY_* environment variables and command-line flags, in that
// order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	configFileName = "library"
	configFileType = "yaml"
	envPrefix      = "LIBRARY"

	KeyDBPath     = "db_path"
	KeyDriver     = "driver"
	KeyLogLevel   = "log_level"
	KeyLogFormat  = "log_format"
	KeyBcryptCost = "bcrypt_cost"
)

// Flag names bound onto config keys.
var flagKeys = map[string]string{
	"db":         KeyDBPath,
	"driver":     KeyDriver,
	"log-level":  KeyLogLevel,
	"log-format": KeyLogFormat,
}

// Config holds the resolved settings.
type Config struct {
	DBPath     string `mapstructure:"db_path"`
	Driver     string `mapstructure:"driver"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

var (
	ErrDriverUnknown    = errors.New("unknown driver")
	ErrLogLevelUnknown  = errors.New("unknown log level")
	ErrLogFormatUnknown = errors.New("unknown log format")
	ErrBcryptCost       = errors.New("bcrypt cost out of range")
	ErrDBPathEmpty      = errors.New("db path must not be empty")
)

// Load resolves the configuration. configFile may be empty, in which case
// library.yaml is looked up in the working directory and its absence is not
// an error. flags may be nil; only flags the user actually set override
// lower layers.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyDBPath, "library.db")
	v.SetDefault(KeyDriver, "sqlite3")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyBcryptCost, bcrypt.DefaultCost)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return ErrDBPathEmpty
	}
	switch c.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrDriverUnknown, c.Driver)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrLogFormatUnknown, c.LogFormat)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d", ErrBcryptCost, c.BcryptCost)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrLogLevelUnknown, c.LogLevel)
	}
	return lvl, nil
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := c.level()
	if err != nil {
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
