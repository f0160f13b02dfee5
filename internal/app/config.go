package app

import (
	"os"
	"strconv"
	"time"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// LockWaitTimeout ограничивает ожидание эксклюзивной блокировки товара.
	LockWaitTimeout time.Duration

	// KafkaBrokers — список брокеров через запятую. Пустой список отключает Kafka.
	KafkaBrokers string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает базовые настройки приложения.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		LockWaitTimeout:             3 * time.Second,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            100 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// ConfigFromEnv собирает конфигурацию из переменных окружения ORDERS_*,
// начиная с DefaultConfig. Непарсящиеся значения молча заменяются дефолтами.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("ORDERS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("ORDERS_METRICS_ADDR", cfg.MetricsAddr)
	cfg.StorageDriver = envString("ORDERS_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("ORDERS_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("ORDERS_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.LockWaitTimeout = envDuration("ORDERS_LOCK_WAIT_TIMEOUT", cfg.LockWaitTimeout)
	cfg.KafkaBrokers = envString("ORDERS_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OutboxPollInterval = envDuration("ORDERS_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("ORDERS_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("ORDERS_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("ORDERS_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.IdempotencyCleanupInterval = envDuration("ORDERS_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("ORDERS_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
