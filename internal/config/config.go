// Package config carries the server configuration resolved from environment
// variables, CLI flags and an optional config file.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults.
const (
	DefaultAdminPort    = 2525
	DefaultPortRangeMin = 3000
	DefaultPortRangeMax = 4000
	DefaultMaxImposters = 100
	DefaultLogLevel     = "info"
)

// Config is the resolved server configuration.
type Config struct {
	AdminPort    int    `json:"adminPort"`
	PortRangeMin int    `json:"portRangeMin"`
	PortRangeMax int    `json:"portRangeMax"`
	MaxImposters int    `json:"maxImposters"`
	LogLevel     string `json:"logLevel"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AdminPort:    DefaultAdminPort,
		PortRangeMin: DefaultPortRangeMin,
		PortRangeMax: DefaultPortRangeMax,
		MaxImposters: DefaultMaxImposters,
		LogLevel:     DefaultLogLevel,
	}
}

// FromEnv resolves the configuration from environment variables, falling
// back to defaults for unset keys.
func FromEnv() (Config, error) {
	cfg := Default()

	var err error
	if cfg.AdminPort, err = envInt("ADMIN_PORT", cfg.AdminPort); err != nil {
		return cfg, err
	}
	if cfg.PortRangeMin, err = envInt("PORT_RANGE_MIN", cfg.PortRangeMin); err != nil {
		return cfg, err
	}
	if cfg.PortRangeMax, err = envInt("PORT_RANGE_MAX", cfg.PortRangeMax); err != nil {
		return cfg, err
	}
	if cfg.MaxImposters, err = envInt("MAX_IMPOSTERS", cfg.MaxImposters); err != nil {
		return cfg, err
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration invariants. Violations are startup
// failures.
func (c Config) Validate() error {
	if c.AdminPort <= 0 || c.AdminPort > 65535 {
		return fmt.Errorf("admin port %d is not a valid port number", c.AdminPort)
	}
	if c.PortRangeMin > c.PortRangeMax {
		return fmt.Errorf("port range min %d exceeds max %d", c.PortRangeMin, c.PortRangeMax)
	}
	if c.MaxImposters <= 0 {
		return fmt.Errorf("max imposters must be positive, got %d", c.MaxImposters)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return parsed, nil
}
