// Package config loads layered configuration: struct defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eventmap/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Database DatabaseConfig `koanf:"database"`
	Map      MapConfig      `koanf:"map"`
	Security SecurityConfig `koanf:"security"`
	Client   ClientConfig   `koanf:"client"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// MapConfig tunes the spatial resolver grid.
type MapConfig struct {
	CellBase       float64 `koanf:"cell_base" validate:"gt=0,lte=360"`
	MinZoom        int     `koanf:"min_zoom" validate:"gte=1,lte=22"`
	MaxZoom        int     `koanf:"max_zoom" validate:"gte=1,lte=22"`
	EnumerateLimit int     `koanf:"enumerate_limit" validate:"gte=2,lte=1000"`
}

type SecurityConfig struct {
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// ClientConfig drives the map client used by the query and watch commands.
type ClientConfig struct {
	APIURL          string        `koanf:"api_url" validate:"required,url"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	Debounce        time.Duration `koanf:"debounce" validate:"gte=0"`
	ExitDuration    time.Duration `koanf:"exit_duration" validate:"gte=0"`
	ClusterZoomStep int           `koanf:"cluster_zoom_step" validate:"gte=1,lte=10"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8081",
			RequestTimeout:  15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Map: MapConfig{
			CellBase:       40,
			MinZoom:        3,
			MaxZoom:        20,
			EnumerateLimit: 25,
		},
		Security: SecurityConfig{
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
		},
		Client: ClientConfig{
			APIURL:          "http://localhost:8081",
			RequestTimeout:  10 * time.Second,
			Debounce:        300 * time.Millisecond,
			ExitDuration:    600 * time.Millisecond,
			ClusterZoomStep: 2,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads defaults, the first config file found and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Map.MaxZoom < c.Map.MinZoom {
		return errors.New("map.max_zoom must be >= map.min_zoom")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_addr":             "server.addr",
	"http_request_timeout":  "server.request_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"log_level": "logging.level",

	"database_url": "database.url",

	"map_cell_base":       "map.cell_base",
	"map_min_zoom":        "map.min_zoom",
	"map_max_zoom":        "map.max_zoom",
	"map_enumerate_limit": "map.enumerate_limit",

	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"cors_origins":        "security.cors_origins",

	"map_api_url":          "client.api_url",
	"map_api_timeout":      "client.request_timeout",
	"viewport_debounce":    "client.debounce",
	"marker_exit_duration": "client.exit_duration",
	"cluster_zoom_step":    "client.cluster_zoom_step",
}

// envTransformFunc maps known environment variables to config keys and drops
// everything else.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
