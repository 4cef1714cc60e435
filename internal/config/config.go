// Package config loads server configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the server's environment-driven configuration.
type Config struct {
	ListenAddr string `env:"BATTLEMAP_LISTEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"BATTLEMAP_DB_PATH" envDefault:"battlemap.db"`
	MapDir     string `env:"BATTLEMAP_MAP_DIR" envDefault:"maps"`
	LogLevel   string `env:"BATTLEMAP_LOG_LEVEL" envDefault:"info"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
