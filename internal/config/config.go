// Package config loads the c9s configuration file and resolves the
// XDG-compliant paths it lives under.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultBaseURL is the documented production endpoint for the tervezo
// control plane, used when config.toml does not set base_url.
const DefaultBaseURL = "https://api.tervezo.dev"

// DefaultPollInterval is the remote list fetcher's default poll interval.
const DefaultPollInterval = 30 * time.Second

// Config is the root of config.toml.
type Config struct {
	Tervezo TervezoConfig `toml:"tervezo"`
}

// TervezoConfig is the [tervezo] table.
type TervezoConfig struct {
	APIKey       string        `toml:"api_key"`
	BaseURL      string        `toml:"base_url"`
	PollInterval time.Duration `toml:"poll_interval"`
}

// Load reads and parses the TOML file at path.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the default config
// (with environment overrides applied) if the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		applyEnv(cfg)
		applyDefaults(cfg)
		return cfg, nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	return &Config{
		Tervezo: TervezoConfig{
			BaseURL:      DefaultBaseURL,
			PollInterval: DefaultPollInterval,
		},
	}
}

// applyEnv applies the TERVEZO_API_KEY override documented in the external
// interfaces section: the environment variable always wins over the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TERVEZO_API_KEY"); v != "" {
		cfg.Tervezo.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Tervezo.BaseURL == "" {
		cfg.Tervezo.BaseURL = DefaultBaseURL
	}
	if cfg.Tervezo.PollInterval <= 0 {
		cfg.Tervezo.PollInterval = DefaultPollInterval
	}
}

func defaultStateDir() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state")
}

// DefaultConfigPath returns the default XDG-compliant config.toml path:
// ~/<state-dir>/config.toml as named in the external interfaces, resolved
// the same way the teacher resolves its state dir.
func DefaultConfigPath() string {
	return filepath.Join(defaultStateDir(), "c9s", "config.toml")
}

// DefaultLogPath returns the durable log file path used by the panic hook.
func DefaultLogPath() string {
	return filepath.Join(defaultStateDir(), "c9s", "c9s.log")
}
