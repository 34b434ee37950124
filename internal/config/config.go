// Package config handles configuration loading for the General Manager
// pipeline. It supports XDG config paths, project-level overrides, and
// environment variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for a `gm` process.
type Config struct {
	Repo     RepoConfig     `mapstructure:"repo"`
	Store    StoreConfig    `mapstructure:"store"`
	Facade   FacadeConfig   `mapstructure:"facade"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Costs    CostsConfig    `mapstructure:"costs"`
}

// RepoConfig holds the default repository a project launches against.
type RepoConfig struct {
	Path       string `mapstructure:"path"`
	BaseBranch string `mapstructure:"base_branch"`
	BuildCmd   string `mapstructure:"build_cmd"`
	TestCmd    string `mapstructure:"test_cmd"`
	OutputsDir string `mapstructure:"outputs_dir"`
}

// StoreConfig points at the SQLite persistence file.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// FacadeConfig holds the host/port an optional HTTP facade would bind to.
// The facade itself is out of scope for this module; these fields exist so
// a future facade process can be configured the same way as everything
// else.
type FacadeConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TimeoutsConfig holds timeout settings read from configuration. The
// pipeline does not read them: the repair-agent, gate-command and
// cancellation timeouts are constants in internal/gm and internal/launcher.
type TimeoutsConfig struct {
	RepairAgent time.Duration `mapstructure:"repair_agent"`
	GateCommand time.Duration `mapstructure:"gate_command"`
	CancelGrace time.Duration `mapstructure:"cancel_grace"`
}

// CostsConfig holds token-cost heuristics read from configuration. Nothing
// reads them: internal/outputs estimates costs from its own CharsPerToken and
// CostPerMillionOutput constants.
type CostsConfig struct {
	CharsPerToken   float64 `mapstructure:"chars_per_token"`
	CostPerKTokens  float64 `mapstructure:"cost_per_k_tokens"`
}

// Load reads configuration from the user config directory, then a
// project-level .gm.yaml if present, then environment variables, each
// layer overriding the last.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("GM")
	v.BindEnv("repo.path", "GM_REPO_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Repo.Path == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.Repo.Path = cwd
		}
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.Repo.Path, ".gm", "state.db")
	}
	if cfg.Repo.OutputsDir == "" {
		cfg.Repo.OutputsDir = filepath.Join(cfg.Repo.Path, ".gm", "outputs")
	}
	cfg.Repo.BuildCmd = expandEnv(cfg.Repo.BuildCmd)
	cfg.Repo.TestCmd = expandEnv(cfg.Repo.TestCmd)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file, bypassing the
// user/project search — used by tests.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("repo.base_branch", "main")
	v.SetDefault("repo.build_cmd", "")
	v.SetDefault("repo.test_cmd", "")

	v.SetDefault("facade.host", "127.0.0.1")
	v.SetDefault("facade.port", 8420)

	v.SetDefault("timeouts.repair_agent", "600s")
	v.SetDefault("timeouts.gate_command", "300s")
	v.SetDefault("timeouts.cancel_grace", "10s")

	v.SetDefault("costs.chars_per_token", 4.0)
	v.SetDefault("costs.cost_per_k_tokens", 0.003)
}

func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "gm")
	}
	return filepath.Join(home, ".config", "gm")
}

// findProjectConfig searches for .gm.yaml in the current directory and its
// parents, stopping at the filesystem root or the first .git directory.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ".gm.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnv expands ${VAR} references against the process environment.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(strings.TrimSpace(key))
	})
}
