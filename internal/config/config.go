package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	StoreDriver      string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	HTTPPort         string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"json"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Change feed
	FeedChannelPrefix       string        `env:"FEED_CHANNEL_PREFIX" envDefault:"changefeed:"`
	FeedResubscribeMaxDelay time.Duration `env:"FEED_RESUBSCRIBE_MAX_DELAY" envDefault:"30s"`

	// Workflow
	AssignIncidentStatus string        `env:"ASSIGN_INCIDENT_STATUS" envDefault:"in_progress"`
	DispatchDefaultETA   time.Duration `env:"DISPATCH_DEFAULT_ETA" envDefault:"15m"`
	WorkflowMaxAttempts  int           `env:"WORKFLOW_MAX_ATTEMPTS" envDefault:"3"`
	WorkflowRetryDelay   time.Duration `env:"WORKFLOW_RETRY_DELAY" envDefault:"50ms"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		StoreDriver:             strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		DatabaseMaxConns:        int32(getEnvAsInt("DATABASE_MAX_CONNS", 10)),
		HTTPPort:                getEnv("HTTP_PORT", "8080"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "json"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:               os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getEnvAsInt("REDIS_DB", 0),
		FeedChannelPrefix:       getEnv("FEED_CHANNEL_PREFIX", "changefeed:"),
		FeedResubscribeMaxDelay: getEnvAsDuration("FEED_RESUBSCRIBE_MAX_DELAY", 30*time.Second),
		AssignIncidentStatus:    getEnv("ASSIGN_INCIDENT_STATUS", "in_progress"),
		DispatchDefaultETA:      getEnvAsDuration("DISPATCH_DEFAULT_ETA", 15*time.Minute),
		WorkflowMaxAttempts:     getEnvAsInt("WORKFLOW_MAX_ATTEMPTS", 3),
		WorkflowRetryDelay:      getEnvAsDuration("WORKFLOW_RETRY_DELAY", 50*time.Millisecond),
		WebhookURL:              os.Getenv("WEBHOOK_URL"),
		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:          getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:       getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:        getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		for _, key := range strings.Split(apiKeysStr, ",") {
			if key = strings.TrimSpace(key); key != "" {
				cfg.APIKeys = append(cfg.APIKeys, key)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.AssignIncidentStatus != "in_progress" && c.AssignIncidentStatus != "assigned" {
		return fmt.Errorf("ASSIGN_INCIDENT_STATUS must be in_progress or assigned, got %q", c.AssignIncidentStatus)
	}
	if c.WorkflowMaxAttempts < 1 {
		return fmt.Errorf("WORKFLOW_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
