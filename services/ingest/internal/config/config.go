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
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr              string `yaml:"redisAddr"`
	RedisPassword          string `yaml:"redisPassword"`
	QueueName              string `yaml:"queueName"`
	QueueGroup             string `yaml:"queueGroup"`
	QueueConcurrency       int    `yaml:"queueConcurrency"`
	QueueMaxRetries        int    `yaml:"queueMaxRetries"`
	QueueRetryDelaySeconds int    `yaml:"queueRetryDelaySeconds"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	ExtractionBaseURL         string `yaml:"extractionBaseURL"`
	ExtractionAPIKey          string `yaml:"extractionAPIKey"`
	ExtractionPollSeconds     int    `yaml:"extractionPollSeconds"`
	ExtractionMaxPollAttempts int    `yaml:"extractionMaxPollAttempts"`

	IndexPath string `yaml:"indexPath"`

	EmbeddingProvider string `yaml:"embeddingProvider"`
	EmbeddingBaseURL  string `yaml:"embeddingBaseURL"`
	EmbeddingModel    string `yaml:"embeddingModel"`
	EmbeddingDim      int    `yaml:"embeddingDim"`

	AMQPURL        string `yaml:"amqpURL"`
	AMQPExchange   string `yaml:"amqpExchange"`
	AMQPRoutingKey string `yaml:"amqpRoutingKey"`
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
	if cfg.MinioAccessKey == "" {
		cfg.MinioAccessKey = os.Getenv("RAGCHAT_MINIO_ACCESS_KEY")
	}
	if cfg.MinioSecretKey == "" {
		cfg.MinioSecretKey = os.Getenv("RAGCHAT_MINIO_SECRET_KEY")
	}
	if cfg.ExtractionAPIKey == "" {
		cfg.ExtractionAPIKey = os.Getenv("RAGCHAT_EXTRACTION_API_KEY")
	}
	if cfg.AMQPURL == "" {
		cfg.AMQPURL = os.Getenv("RAGCHAT_AMQP_URL")
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
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml)")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml)")
	}
	if cfg.ExtractionBaseURL == "" {
		return errors.New("config: extractionBaseURL is required (set in config.yaml)")
	}
	if cfg.IndexPath == "" {
		return errors.New("config: indexPath is required (set in config.yaml)")
	}
	if cfg.EmbeddingProvider == "ollama" && cfg.EmbeddingModel == "" {
		return errors.New("config: embeddingModel is required when embeddingProvider is ollama")
	}
	return nil
}
