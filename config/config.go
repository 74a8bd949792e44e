// Package config loads pinguard settings from an optional YAML file and
// PINGUARD_* environment variables using Viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PINGUARD"

var ErrInvalid = errors.New("config: invalid value")

// Config stores all configuration for the application.
type Config struct {
	DataDir           string        `mapstructure:"data_dir"`
	Store             string        `mapstructure:"store"`
	Biometric         string        `mapstructure:"biometric"`
	BiometricEnrolled bool          `mapstructure:"biometric_enrolled"`
	BiometricDelay    time.Duration `mapstructure:"biometric_delay"`
	Prompt            string        `mapstructure:"prompt"`
	FailureRate       float64       `mapstructure:"failure_rate"`
	TransactionLimit  int           `mapstructure:"transaction_limit"`
	ClipboardClear    time.Duration `mapstructure:"clipboard_clear"`
	LogLevel          string        `mapstructure:"log_level"`
}

// Load reads configuration. When file is empty, $HOME/.pinguard.yaml is used
// if it exists; a missing default file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()
	v.SetDefault("data_dir", filepath.Join(home, ".pinguard"))
	v.SetDefault("store", "file")
	v.SetDefault("biometric", "none")
	v.SetDefault("biometric_enrolled", true)
	v.SetDefault("biometric_delay", "0s")
	v.SetDefault("prompt", "Authenticate to show balance")
	v.SetDefault("failure_rate", 0.1)
	v.SetDefault("transaction_limit", 20)
	v.SetDefault("clipboard_clear", "30s")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".pinguard")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		slog.Debug("using config file", "file", v.ConfigFileUsed())
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

// Validate checks enumerated and ranged settings.
func (c *Config) Validate() error {
	switch c.Store {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: store %q (want file, sqlite or memory)", ErrInvalid, c.Store)
	}
	switch c.Biometric {
	case "none", "success", "cancel", "fail":
	default:
		return fmt.Errorf("%w: biometric %q (want none, success, cancel or fail)", ErrInvalid, c.Biometric)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("%w: failure_rate %v not in [0,1]", ErrInvalid, c.FailureRate)
	}
	if c.TransactionLimit <= 0 {
		return fmt.Errorf("%w: transaction_limit must be positive", ErrInvalid)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is empty", ErrInvalid)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}

// Path joins name onto the data directory.
func (c *Config) Path(name string) string {
	return filepath.Join(c.DataDir, name)
}
