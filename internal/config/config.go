package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	HTTPAddr      string
	StorageDriver string
	PostgresDSN   string
	RedisAddr     string
	KafkaBrokers  []string
	JWTSecret     string

	PaymentsTopic     string
	ParticipantsTopic string
	KafkaGroupID      string

	LogLevel     string
	OTLPEndpoint string
	MetricsAddr  string

	DBMaxOpenConns        int
	DBMaxIdleConns        int
	DBTxMaxRetries        int
	AccountCreateAttempts int
	IdempotencyTTL        time.Duration
	ShutdownTimeout       time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		StorageDriver: getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		PostgresDSN:   getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=ledger sslmode=disable"),
		// пустой адрес отключает Redis и ключи идемпотентности
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		JWTSecret:    getEnv("JWT_SECRET", "supersecret"),

		PaymentsTopic:     getEnv("KAFKA_PAYMENTS_TOPIC", "ledger.payments"),
		ParticipantsTopic: getEnv("KAFKA_PARTICIPANTS_TOPIC", "game.participants"),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "game-payment-ledger"),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MetricsAddr:  os.Getenv("METRICS_ADDR"),

		DBMaxOpenConns:        getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:        getInt("DB_MAX_IDLE_CONNS", 5),
		DBTxMaxRetries:        getInt("DB_TX_MAX_RETRIES", 3),
		AccountCreateAttempts: getInt("ACCOUNT_CREATE_ATTEMPTS", 3),
		IdempotencyTTL:        getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		ShutdownTimeout:       getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.StorageDriver != StorageDriverPostgres && cfg.StorageDriver != StorageDriverMemory {
		slog.Warn("unknown storage driver, falling back to postgres", "storage_driver", cfg.StorageDriver)
		cfg.StorageDriver = StorageDriverPostgres
	}
	if cfg.AccountCreateAttempts < 1 {
		cfg.AccountCreateAttempts = 1
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"storage_driver", cfg.StorageDriver,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"db_tx_max_retries", cfg.DBTxMaxRetries,
	)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		slog.Warn("invalid integer in env, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		slog.Warn("invalid duration in env, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
