// Package config loads the server configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAddr            = ":8000"
	DefaultDBDriver        = "sqlite"
	DefaultDBURL           = "./tasks.db"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultConfigFile      = "tasks.toml"
	DefaultShutdownTimeout = 5 * time.Second
)

type Config struct {
	Addr        string   `toml:"addr"`
	DBDriver    string   `toml:"db_driver"`
	DBURL       string   `toml:"db_url"`
	LogLevel    string   `toml:"log_level"`
	LogFormat   string   `toml:"log_format"`
	CORSOrigins []string `toml:"cors_origins"`

	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// Load builds the configuration from, in increasing priority:
// defaults, the TOML file named by TASKS_CONFIG (or tasks.toml when present),
// a .env file in the working directory, and the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	path, explicit := os.LookupEnv("TASKS_CONFIG")
	if !explicit {
		path = DefaultConfigFile
	}
	if err := loadConfigFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Addr = DefaultAddr
	cfg.DBDriver = DefaultDBDriver
	cfg.DBURL = DefaultDBURL
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.CORSOrigins = []string{"*"}
	cfg.ShutdownTimeout = DefaultShutdownTimeout
}

func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("DB_URL"); v != "" {
		cfg.DBURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db_driver must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBURL == "" {
		return errors.New("db_url is required")
	}
	switch c.LogFormat {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("log_format must be text, json or logfmt, got %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
