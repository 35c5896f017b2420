package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	ChatServiceURL   string `yaml:"chatServiceURL"`
	IngestServiceURL string `yaml:"ingestServiceURL"`

	RedisAddr              string   `yaml:"redisAddr"`
	RedisPassword          string   `yaml:"redisPassword"`
	RateLimitPerMinute     int      `yaml:"rateLimitPerMinute"`
	RateLimitWindowSeconds int      `yaml:"rateLimitWindowSeconds"`
	TrustedProxies         []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = os.Getenv("RAGCHAT_REDIS_PASSWORD")
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.ChatServiceURL == "" {
		return errors.New("config: chatServiceURL is required (set in config.yaml)")
	}
	if cfg.IngestServiceURL == "" {
		return errors.New("config: ingestServiceURL is required (set in config.yaml)")
	}
	if cfg.RateLimitPerMinute > 0 && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when rate limiting is enabled")
	}
	return nil
}
