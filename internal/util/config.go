// Package util provides configuration and logging for netrecon.
package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NETRECON_TIMEOUT=500ms.
const EnvPrefix = "NETRECON"

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Probe settings
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	Rate        int           `mapstructure:"rate"`
	TTLDelta    int           `mapstructure:"ttl_delta"`

	// Ping and trace
	PingCount    int           `mapstructure:"ping_count"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	MaxHops      int           `mapstructure:"max_hops"`

	// DNS
	DNSServer string `mapstructure:"dns_server"`
	Wordlist  string `mapstructure:"wordlist"`

	// OUIFile replaces the embedded vendor database.
	OUIFile string `mapstructure:"oui_file"`

	// History
	SaveHistory bool `mapstructure:"save_history"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".netrecon")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "warn",
		LogFile:  "",

		Timeout:     2 * time.Second,
		Concurrency: 100,
		Rate:        0,
		TTLDelta:    32,

		PingCount:    4,
		PingInterval: time.Second,
		MaxHops:      30,

		SaveHistory: true,
	}
}

// DBPath returns the location of the run history database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "netrecon.db")
}

// Validate checks values that would make every run fail.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate must not be negative, got %d", c.Rate))
	}
	if c.PingCount <= 0 {
		errs = append(errs, fmt.Errorf("ping_count must be positive, got %d", c.PingCount))
	}
	if c.MaxHops <= 0 || c.MaxHops > 255 {
		errs = append(errs, fmt.Errorf("max_hops must be in 1..255, got %d", c.MaxHops))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from the given file, or from config.yaml in
// the data directory or the working directory, and from the environment.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(cfg.DataDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("rate", cfg.Rate)
	v.SetDefault("ttl_delta", cfg.TTLDelta)
	v.SetDefault("ping_count", cfg.PingCount)
	v.SetDefault("ping_interval", cfg.PingInterval)
	v.SetDefault("max_hops", cfg.MaxHops)
	v.SetDefault("dns_server", cfg.DNSServer)
	v.SetDefault("wordlist", cfg.Wordlist)
	v.SetDefault("oui_file", cfg.OUIFile)
	v.SetDefault("save_history", cfg.SaveHistory)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
