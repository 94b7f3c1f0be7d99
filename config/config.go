/*
Package config loads server configuration from a TOML file.

PURPOSE:
  Central place for the knobs the server binary needs: listen address,
  CORS origins, and the SQLite database path. Values come from a TOML
  file with sane defaults when the file or a key is absent.

FILE FORMAT:
  [server]
  host = "0.0.0.0"
  port = 8080
  cors_origins = ["http://localhost:5173"]

  [database]
  path = "./data/payables.db"

PRECEDENCE:
  Defaults < config file < command-line flags (applied in main).
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// DatabaseConfig configures storage.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: DatabaseConfig{
			Path: "./data/payables.db",
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is
// an error; pass an empty path to get Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	if cfg.Database.Path == "" {
		return cfg, fmt.Errorf("database path must not be empty")
	}
	return cfg, nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
