package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all configuration for the relay service
type Config struct {
	Kafka     KafkaConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	Session   SessionConfig
	Batch     BatchConfig
	Logging   LoggingConfig
	Service   ServiceConfig
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers       []string
	RelayGroupID  string
	WorkerGroupID string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration for pending auth storage
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EmbeddingConfig holds embedding inference configuration
type EmbeddingConfig struct {
	BaseURL             string
	RequestTimeout      time.Duration
	SimilarityThreshold float64
}

// SessionConfig holds session supervision configuration
type SessionConfig struct {
	WatchdogInterval    time.Duration
	ChatRefreshInterval time.Duration
	PendingAuthTTL      time.Duration
	ConnectTimeout      time.Duration
}

// BatchConfig holds message batching configuration
type BatchConfig struct {
	Size int
	Time time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name string
	Port string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	batchSize, err := strconv.Atoi(getEnv("BATCH_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid BATCH_SIZE: %w", err)
	}

	batchTime, err := time.ParseDuration(getEnv("BATCH_TIME", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BATCH_TIME: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("SIMILARITY_THRESHOLD", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SIMILARITY_THRESHOLD: %w", err)
	}

	embeddingTimeout, err := time.ParseDuration(getEnv("EMBEDDING_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_REQUEST_TIMEOUT: %w", err)
	}

	watchdogInterval, err := time.ParseDuration(getEnv("WATCHDOG_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WATCHDOG_INTERVAL: %w", err)
	}

	chatRefreshInterval, err := time.ParseDuration(getEnv("CHAT_REFRESH_INTERVAL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_REFRESH_INTERVAL: %w", err)
	}

	pendingAuthTTL, err := time.ParseDuration(getEnv("PENDING_AUTH_TTL", "300s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PENDING_AUTH_TTL: %w", err)
	}

	connectTimeout, err := time.ParseDuration(getEnv("TELEGRAM_CONNECT_TIMEOUT", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CONNECT_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9093"), ","),
			RelayGroupID:  getEnv("KAFKA_RELAY_GROUP_ID", "relay-service-group"),
			WorkerGroupID: getEnv("KAFKA_WORKER_GROUP_ID", "worker-service-group"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:   getEnv("POSTGRES_DB", "reader"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Embedding: EmbeddingConfig{
			BaseURL:             getEnv("EMBEDDING_BASE_URL", "http://localhost:8500"),
			RequestTimeout:      embeddingTimeout,
			SimilarityThreshold: threshold,
		},
		Session: SessionConfig{
			WatchdogInterval:    watchdogInterval,
			ChatRefreshInterval: chatRefreshInterval,
			PendingAuthTTL:      pendingAuthTTL,
			ConnectTimeout:      connectTimeout,
		},
		Batch: BatchConfig{
			Size: batchSize,
			Time: batchTime,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name: getEnv("SERVICE_NAME", "relay-service"),
			Port: getEnv("SERVICE_PORT", "8085"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}

	if c.Batch.Size <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}

	if c.Batch.Time <= 0 {
		return fmt.Errorf("BATCH_TIME must be positive")
	}

	if c.Embedding.SimilarityThreshold < 0 || c.Embedding.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in [0, 1]")
	}

	return nil
}

// Result is fx.Out struct for providing config dependencies
type Result struct {
	fx.Out

	Config          *Config
	KafkaConfig     *KafkaConfig
	DatabaseConfig  *DatabaseConfig
	RedisConfig     *RedisConfig
	EmbeddingConfig *EmbeddingConfig
	SessionConfig   *SessionConfig
	BatchConfig     *BatchConfig
	LoggingConfig   *LoggingConfig
	ServiceConfig   *ServiceConfig
}

// Out returns fx-compatible config result
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:          cfg,
		KafkaConfig:     &cfg.Kafka,
		DatabaseConfig:  &cfg.Database,
		RedisConfig:     &cfg.Redis,
		EmbeddingConfig: &cfg.Embedding,
		SessionConfig:   &cfg.Session,
		BatchConfig:     &cfg.Batch,
		LoggingConfig:   &cfg.Logging,
		ServiceConfig:   &cfg.Service,
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
