package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds client defaults read from a YAML file. Flags and environment variables override it.
type Config struct {
	Server string `yaml:"server"`
	Port   int    `yaml:"port"`
	// Aliases map a local command name to the command sent to the server.
	Aliases map[string]string `yaml:"aliases"`
}

// DefaultPath returns $XDG_CONFIG_HOME/nailgun/config.yaml or its platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nailgun", "config.yaml")
}

// Load decodes the config file. A missing file or empty path yields an empty config.
func Load(path string) (*Config, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return &Config{}, nil
	}
	expanded, err := expandPath(trimmed)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", expanded, err)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config %s: invalid port %d", expanded, cfg.Port)
	}
	return &cfg, nil
}

// ResolveCommand applies an alias, if one exists for name.
func (c *Config) ResolveCommand(name string) string {
	if c == nil {
		return name
	}
	if target, ok := c.Aliases[name]; ok && target != "" {
		return target
	}
	return name
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
