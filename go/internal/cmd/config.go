package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Poll struct {
		DefaultDurationMs int64 `yaml:"default_duration_ms"`
	} `yaml:"poll"`

	Websocket struct {
		SendBuffer      int `yaml:"send_buffer"`
		PingIntervalSec int `yaml:"ping_interval_sec"`
		ReadTimeoutSec  int `yaml:"read_timeout_sec"`
		WriteTimeoutSec int `yaml:"write_timeout_sec"`
	} `yaml:"websocket"`

	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.Port = "4000"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Poll.DefaultDurationMs = 60_000
	cfg.Websocket.SendBuffer = 256
	cfg.Websocket.PingIntervalSec = 30
	cfg.Websocket.ReadTimeoutSec = 60
	cfg.Websocket.WriteTimeoutSec = 10
	cfg.LogLevel = "info"
	return &cfg
}

// loadConfig reads the YAML config file, falling back to defaults for
// anything unset. A missing file is not an error; env overrides still
// apply.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Poll.DefaultDurationMs = int64(getEnvAsInt("POLL_DEFAULT_DURATION_MS", int(cfg.Poll.DefaultDurationMs)))
}

func (c *Config) defaultPollDuration() time.Duration {
	return time.Duration(c.Poll.DefaultDurationMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
