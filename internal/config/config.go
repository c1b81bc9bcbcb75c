package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"popconn/internal"
	"popconn/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Permutation PermutationConfig `yaml:"permutation"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

// PermutationConfig bounds permutation runs
type PermutationConfig struct {
	DefaultPermutations int `yaml:"default_permutations"`
	MaxPermutations     int `yaml:"max_permutations"`
	// Workers is the number of concurrent trials; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    "8080",
			GinMode: "release",
		},
		Permutation: PermutationConfig{
			DefaultPermutations: 1000,
			MaxPermutations:     100000,
			Workers:             0,
		},
		Log: LogConfig{Level: "INFO"},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// POPCONN_CONFIG (if any), then environment variables, and validates it
func Load() (*Config, error) {
	config := Default()

	if path := os.Getenv("POPCONN_CONFIG"); path != "" {
		if err := loadFile(config, path); err != nil {
			return nil, errors.Wrap(err, "failed to load configuration file")
		}
	}

	loadServerConfig(&config.Server)
	loadPermutationConfig(&config.Permutation)
	config.Log.Level = getEnvOrDefault("LOG_LEVEL", config.Log.Level)

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("read %s: %v", path, err))
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("parse %s: %v", path, err))
	}
	return nil
}

func loadServerConfig(c *ServerConfig) {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.GinMode = getEnvOrDefault("GIN_MODE", c.GinMode)
}

func loadPermutationConfig(c *PermutationConfig) {
	c.DefaultPermutations = getEnvIntOrDefault("POPCONN_PERMUTATIONS", c.DefaultPermutations)
	c.MaxPermutations = getEnvIntOrDefault("POPCONN_MAX_PERMUTATIONS", c.MaxPermutations)
	c.Workers = getEnvIntOrDefault("POPCONN_WORKERS", c.Workers)
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("gin mode %q must be debug, release or test", config.Server.GinMode))
	}
	p := config.Permutation
	if p.DefaultPermutations < 1 {
		return errors.ConfigInvalid("default permutations must be positive")
	}
	if p.MaxPermutations < p.DefaultPermutations {
		return errors.ConfigInvalid(fmt.Sprintf("max permutations %d is below the default %d", p.MaxPermutations, p.DefaultPermutations))
	}
	if p.Workers < 0 {
		return errors.ConfigInvalid("workers must not be negative")
	}
	if _, ok := internal.ParseLogLevel(config.Log.Level); !ok {
		return errors.ConfigInvalid(fmt.Sprintf("unknown log level %q", config.Log.Level))
	}
	return nil
}

// EffectiveWorkers resolves Workers, mapping 0 to the CPU count
func (p PermutationConfig) EffectiveWorkers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Logger builds the process logger at the configured level
func (c *Config) Logger() *internal.Logger {
	level, _ := internal.ParseLogLevel(c.Log.Level)
	return internal.NewLogger(level, os.Stderr)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
