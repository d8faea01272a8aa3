package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Queue backends accepted by NOTIFY_QUEUE_BACKEND.
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	SLA          SLAConfig
	Upload       UploadConfig
	Notification NotificationConfig
	Seed         SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	CORSOrigin            string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SLAConfig holds the windows used to compute ticket due dates.
type SLAConfig struct {
	ResponseHours   int
	ResolutionHours int
}

// UploadConfig controls where comment attachments are written.
type UploadConfig struct {
	Dir      string
	MaxBytes int
}

// NotificationConfig holds outbound webhook settings.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
	QueueBackend          string
	QueueSize             int
	RedisQueueKey         string
}

// SeedConfig lists the default accounts created at boot.
type SeedConfig struct {
	AgentEmail    string
	AgentPassword string
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", getEnv("PORT", "3000")),
			Version:               getEnv("APP_VERSION", "dev"),
			CORSOrigin:            getEnv("CORS_ORIGIN", "http://localhost:5173"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", getEnv("JWT_SECRET", "devsecret")),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 24*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		SLA: SLAConfig{
			ResponseHours:   getEnvAsInt("SLA_RESPONSE_HOURS", 4),
			ResolutionHours: getEnvAsInt("SLA_RESOLUTION_HOURS", 24),
		},
		Upload: UploadConfig{
			Dir:      getEnv("UPLOAD_DIR", "uploads"),
			MaxBytes: getEnvAsInt("UPLOAD_MAX_BYTES", 20*1024*1024),
		},
		Notification: NotificationConfig{
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", os.Getenv("WEBHOOK_URL")),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
			QueueBackend:          strings.ToLower(getEnv("NOTIFY_QUEUE_BACKEND", QueueBackendMemory)),
			QueueSize:             getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			RedisQueueKey:         getEnv("NOTIFY_REDIS_QUEUE_KEY", "helpdesk:webhooks"),
		},
		Seed: SeedConfig{
			AgentEmail:    os.Getenv("DEFAULT_AGENT_EMAIL"),
			AgentPassword: os.Getenv("DEFAULT_AGENT_PASSWORD"),
			AdminEmail:    os.Getenv("DEFAULT_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("DEFAULT_ADMIN_PASSWORD"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SLA.ResponseHours < 0 || c.SLA.ResolutionHours < 0 {
		return fmt.Errorf("SLA hours must not be negative")
	}
	switch c.Notification.QueueBackend {
	case QueueBackendMemory, QueueBackendRedis:
	default:
		return fmt.Errorf("invalid NOTIFY_QUEUE_BACKEND %q", c.Notification.QueueBackend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ResponseWindow is the time allowed before the first staff response is due.
func (s SLAConfig) ResponseWindow() time.Duration {
	return time.Duration(s.ResponseHours) * time.Hour
}

// ResolutionWindow is the time allowed before the ticket should be resolved.
func (s SLAConfig) ResolutionWindow() time.Duration {
	return time.Duration(s.ResolutionHours) * time.Hour
}

// WebhookTimeout bounds a single outbound delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

// Enabled reports whether an outbound endpoint is configured.
func (n NotificationConfig) Enabled() bool {
	return strings.TrimSpace(n.WebhookURL) != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
