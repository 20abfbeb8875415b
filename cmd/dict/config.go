// =============================================================================
// config.go - Configuration (Defaults, Environment, Config File, Flags)
// =============================================================================
//
// Settings are resolved by viper in this order (first wins):
//
//   1. Command-line flags        --host dict.example.org
//   2. Environment variables     DICT_HOST=dict.example.org
//   3. Config file               ~/.config/dict/config.yaml (or .toml)
//   4. Built-in defaults         dict.org:2628, database "*", strategy "."
//
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/attic/dict/dictprotocol"
)

const (
	envPrefix      = "DICT"
	configName     = "config"
	configDirName  = "dict"
	defaultHost    = "dict.org"
	defaultTimeout = 30 * time.Second
)

// Config holds the resolved CLI settings.
type Config struct {
	Host        string
	Port        int
	Database    string
	Strategy    string
	Timeout     time.Duration
	ClientName  string
	Format      string // "text" or "yaml"
	Width       int    // 0 = terminal width
	HistoryFile string
	Debug       bool
	LogFile     string
}

// GO CONCEPT: Private Viper Instances
// -----------------------------------
// viper offers a package-level singleton (viper.GetString), but a private
// instance from viper.New() keeps tests independent of each other: every
// test builds its own, so defaults and bound flags never leak between them.

// newViper returns a viper instance with defaults and environment lookup.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", defaultHost)
	v.SetDefault("port", dictprotocol.DefaultPort)
	v.SetDefault("database", dictprotocol.AllDatabasesName)
	v.SetDefault("strategy", dictprotocol.DefaultStrategyName)
	v.SetDefault("timeout", defaultTimeout)
	v.SetDefault("client_name", "dict-go "+version)
	v.SetDefault("format", "text")
	v.SetDefault("width", 0)
	v.SetDefault("history_file", filepath.Join(homeDir(), historyFileName))
	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")
	return v
}

// loadConfig reads the config file and returns the merged settings.
// An explicit path must exist; the default location is optional.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(configDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		Database:    v.GetString("database"),
		Strategy:    v.GetString("strategy"),
		Timeout:     v.GetDuration("timeout"),
		ClientName:  v.GetString("client_name"),
		Format:      strings.ToLower(v.GetString("format")),
		Width:       v.GetInt("width"),
		HistoryFile: v.GetString("history_file"),
		Debug:       v.GetBool("debug"),
		LogFile:     v.GetString("log_file"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout %s must not be negative", c.Timeout)
	}
	if c.Width < 0 {
		return fmt.Errorf("width %d must not be negative", c.Width)
	}
	switch c.Format {
	case formatText, formatYAML:
	default:
		return fmt.Errorf("unknown format %q (want %s or %s)", c.Format, formatText, formatYAML)
	}
	return nil
}

// configDir returns $XDG_CONFIG_HOME/dict, falling back to ~/.config/dict.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirName)
	}
	return filepath.Join(homeDir(), ".config", configDirName)
}
