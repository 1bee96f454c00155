package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the client configuration, stored as YAML under the state dir.
type Config struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token,omitempty"`
	// RequestTimeout applies to plain JSON calls only; event streams run until
	// their terminal event and are bounded by context, not by a timeout.
	RequestTimeoutSec int  `yaml:"request_timeout_sec"`
	ReduceMotion      bool `yaml:"reduce_motion,omitempty"`
	Installed         bool `yaml:"installed"`
}

const defaultBaseURL = "http://localhost:8000"

func DefaultConfig() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		RequestTimeoutSec: 30,
	}
}

// DefaultStateDir is where the config, log file and local session cache live.
func DefaultStateDir() string {
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".nai")
	}
	return filepath.Join(os.TempDir(), "nai")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultStateDir(), "config.yaml")
}

func DefaultLogPath() string {
	return filepath.Join(DefaultStateDir(), "nai.log")
}

// LoadConfig reads path (DefaultConfigPath when empty), fills defaults and
// applies NAI_* environment overrides. A missing file is not an error; the
// setup wizard creates it on first run.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("NAI_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NAI_TOKEN")); v != "" {
		cfg.Token = v
	}
	if os.Getenv("NAI_REDUCE_MOTION") == "1" {
		cfg.ReduceMotion = true
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = 30
	}
	if cfg.RequestTimeoutSec > 300 {
		cfg.RequestTimeoutSec = 300
	}
	return cfg, nil
}

// SaveConfig writes cfg to path (DefaultConfigPath when empty), creating the
// state dir as needed.
func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// RequestTimeout returns the JSON-call timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}
