// Package config loads cachesrv's configuration, layering command-line
// flags over environment variables over an optional config file over
// built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the cache server.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Limit   int64  `mapstructure:"limit"`
	Verbose bool   `mapstructure:"verbose"`
}

// Default returns a Config with the spec's documented defaults: port
// 11211, bind-all host, no byte limit, info-level logging.
func Default() *Config {
	return &Config{
		Host:    "",
		Port:    11211,
		Limit:   0,
		Verbose: false,
	}
}

// Load reads configuration from environment variables, an optional
// config file, and command line flags bound via viper.BindPFlag.
func Load() (*Config, error) {
	cfg := Default()

	viper.SetConfigName("cachesrv")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/cachesrv/")
	viper.AddConfigPath("$HOME/.cachesrv")

	viper.SetEnvPrefix("CACHESRV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("limit", cfg.Limit)
	viper.SetDefault("verbose", cfg.Verbose)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.Limit < 0 {
		return fmt.Errorf("invalid limit: %d (must be >= 0)", c.Limit)
	}
	return nil
}

// String renders a one-line summary of the effective configuration.
func (c *Config) String() string {
	limit := "unlimited"
	if c.Limit > 0 {
		limit = fmt.Sprintf("%d bytes", c.Limit)
	}
	return fmt.Sprintf("cachesrv config: %s:%d, limit=%s, verbose=%t", c.Host, c.Port, limit, c.Verbose)
}
