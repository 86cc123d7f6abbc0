package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".linebridge"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. LINEBRIDGE_CONFIG
// overrides the default location under the home directory.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("LINEBRIDGE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present) and applies environment variable
// overrides for each group. Missing file is not an error; defaults apply.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Environment overrides win over file values.
	envconfig.Process("LINEBRIDGE_SERVER", &cfg.Server)
	envconfig.Process("LINEBRIDGE_LINE", &cfg.Line)
	envconfig.Process("LINEBRIDGE_DIRECTLINE", &cfg.DirectLine)
	envconfig.Process("LINEBRIDGE_SESSION", &cfg.Session)
	envconfig.Process("LINEBRIDGE_STORE", &cfg.Store)

	applyFallbacks(cfg)
	return cfg, nil
}

// Save writes the config to the config file, creating the directory if
// needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// StorePath resolves the exchange log location, defaulting under the
// config directory.
func (c *Config) StorePath() string {
	if p := strings.TrimSpace(c.Store.Path); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "exchanges.db"
	}
	return filepath.Join(home, ConfigDir, "exchanges.db")
}

// Validate reports configuration required for serving.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DirectLine.TokenURL) == "" {
		return fmt.Errorf("directline token url not configured (LINEBRIDGE_DIRECTLINE_TOKEN_URL)")
	}
	if strings.TrimSpace(c.Line.AccessToken) == "" {
		return fmt.Errorf("line access token not configured (LINEBRIDGE_LINE_ACCESS_TOKEN)")
	}
	return nil
}

func applyFallbacks(cfg *Config) {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		cfg.Server.ListenAddr = def.Server.ListenAddr
	}
	if strings.TrimSpace(cfg.Line.APIBase) == "" {
		cfg.Line.APIBase = def.Line.APIBase
	}
	dl := &cfg.DirectLine
	if strings.TrimSpace(dl.BaseURL) == "" {
		dl.BaseURL = def.DirectLine.BaseURL
	}
	if dl.HTTPTimeout <= 0 {
		dl.HTTPTimeout = def.DirectLine.HTTPTimeout
	}
	if dl.ReplyBudget <= 0 {
		dl.ReplyBudget = def.DirectLine.ReplyBudget
	}
	if dl.PollInitial <= 0 {
		dl.PollInitial = def.DirectLine.PollInitial
	}
	if dl.PollMax <= 0 {
		dl.PollMax = def.DirectLine.PollMax
	}
	if strings.TrimSpace(dl.FallbackText) == "" {
		dl.FallbackText = def.DirectLine.FallbackText
	}
	if strings.TrimSpace(dl.ApologyText) == "" {
		dl.ApologyText = def.DirectLine.ApologyText
	}
	if cfg.Session.TTL < 0 {
		cfg.Session.TTL = 0
	}
}
