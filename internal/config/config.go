package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Realtime     RealtimeConfig
	Notification NotificationConfig
	Tracing      TracingConfig
}

type AppConfig struct {
	Port                    string
	Environment             string
	LogFilePath             string
	NotificationLogFilePath string
	CorsAllowedOrigins      string
	JwtSecret               string
	NatsURL                 string
	RedisURL                string
	StorageDriver           string // "postgres" or "memory"
}

type DatabaseConfig struct {
	Connection string
}

type RealtimeConfig struct {
	BufferSize     int
	ChannelTimeout time.Duration // 0 keeps channels open until the client leaves
	Heartbeat      time.Duration
	Shards         int
}

type NotificationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	IdempotencyTTL  time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                    getEnv("APP_PORT", "3000"),
			Environment:             getEnv("GO_ENV", "development"),
			LogFilePath:             getEnv("LOG_FILE_PATH", "logs/app.log"),
			NotificationLogFilePath: getEnv("NOTIFICATION_LOG_FILE_PATH", "logs/notification.log"),
			CorsAllowedOrigins:      getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JwtSecret:               getEnv("JWT_SECRET", ""),
			NatsURL:                 getEnv("NATS_URL", ""),
			RedisURL:                getEnv("REDIS_URL", ""),
			StorageDriver:           getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Realtime: RealtimeConfig{
			BufferSize:     getEnvAsInt("REALTIME_BUFFER_SIZE", 64),
			ChannelTimeout: getEnvAsDuration("REALTIME_CHANNEL_TIMEOUT", 0),
			Heartbeat:      getEnvAsPositiveDuration("REALTIME_HEARTBEAT", 25*time.Second),
			Shards:         getEnvAsInt("REALTIME_SHARDS", 32),
		},
		Notification: NotificationConfig{
			DefaultPageSize: getEnvAsInt("NOTIFICATION_DEFAULT_PAGE_SIZE", 50),
			MaxPageSize:     getEnvAsInt("NOTIFICATION_MAX_PAGE_SIZE", 200),
			IdempotencyTTL:  getEnvAsDuration("IDEMPOTENCY_TTL", 10*time.Minute),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "notification-hub"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("30s", "10m") or "0".
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsPositiveDuration is getEnvAsDuration for intervals that cannot be
// switched off.
func getEnvAsPositiveDuration(key string, fallback time.Duration) time.Duration {
	if value := getEnvAsDuration(key, fallback); value > 0 {
		return value
	}
	return fallback
}
