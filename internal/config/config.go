package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Events       EventsConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Sync         SyncConfig
	Assistant    AssistantConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigin            string
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver     string
	SQLitePath string
	RedisNS    string
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

// EventsConfig selects the propagation dispatcher.
type EventsConfig struct {
	Driver       string
	StreamKey    string
	StreamMaxLen int64
	ReplayBuffer int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret                   string
	SessionTTLMinutes           int
	SessionCheckIntervalSeconds int
	BcryptCost                  int
	AdminEmail                  string
	AdminPassword               string
	AdminFirstName              string
	AdminLastName               string
	RateLimitPerMinute          int
}

// SyncConfig tunes the propagation channel and the registry polls.
type SyncConfig struct {
	RefreshIntervalSeconds int
	ReconnectDelaySeconds  int
	SendBuffer             int
	InboundPerSecond       float64
	InboundBurst           int
}

// AssistantConfig configures the FAQ assistant upstream.
type AssistantConfig struct {
	UpstreamURL        string
	APIKey             string
	Model              string
	TimeoutSeconds     int
	IntentsFile        string
	RateLimitPerMinute int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	inboundRate, err := strconv.ParseFloat(getEnv("SYNC_INBOUND_PER_SECOND", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_INBOUND_PER_SECOND: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "citizen-complaint-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSOrigin:            getEnv("CORS_ORIGIN", "*"),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", "memory")),
			SQLitePath: getEnv("STORE_SQLITE_PATH", "citizenhub.db"),
			RedisNS:    getEnv("STORE_REDIS_NAMESPACE", "citizenhub"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Events: EventsConfig{
			Driver:       strings.ToLower(getEnv("EVENTS_DRIVER", "memory")),
			StreamKey:    getEnv("EVENTS_STREAM_KEY", "citizenhub:events"),
			StreamMaxLen: int64(getEnvAsInt("EVENTS_STREAM_MAX_LEN", 10000)),
			ReplayBuffer: getEnvAsInt("EVENTS_REPLAY_BUFFER", 1024),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:                   getEnv("AUTH_JWT_SECRET", "dev-secret"),
			SessionTTLMinutes:           getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 20),
			SessionCheckIntervalSeconds: getEnvAsInt("AUTH_SESSION_CHECK_INTERVAL_SECONDS", 60),
			BcryptCost:                  getEnvAsInt("AUTH_BCRYPT_COST", 12),
			AdminEmail:                  strings.ToLower(getEnv("ADMIN_EMAIL", "evode.citizenhub@gmail.com")),
			AdminPassword:               getEnv("ADMIN_PASSWORD", "evode@123"),
			AdminFirstName:              getEnv("ADMIN_FIRST_NAME", "Evode"),
			AdminLastName:               getEnv("ADMIN_LAST_NAME", "Nuby"),
			RateLimitPerMinute:          getEnvAsInt("AUTH_RATE_LIMIT_PER_MINUTE", 30),
		},
		Sync: SyncConfig{
			RefreshIntervalSeconds: getEnvAsInt("SYNC_REFRESH_INTERVAL_SECONDS", 30),
			ReconnectDelaySeconds:  getEnvAsInt("SYNC_RECONNECT_DELAY_SECONDS", 5),
			SendBuffer:             getEnvAsInt("SYNC_SEND_BUFFER", 64),
			InboundPerSecond:       inboundRate,
			InboundBurst:           getEnvAsInt("SYNC_INBOUND_BURST", 10),
		},
		Assistant: AssistantConfig{
			UpstreamURL:        os.Getenv("ASSISTANT_UPSTREAM_URL"),
			APIKey:             os.Getenv("ASSISTANT_API_KEY"),
			Model:              getEnv("ASSISTANT_MODEL", "gpt-3.5-turbo"),
			TimeoutSeconds:     getEnvAsInt("ASSISTANT_TIMEOUT_SECONDS", 15),
			IntentsFile:        os.Getenv("ASSISTANT_INTENTS_FILE"),
			RateLimitPerMinute: getEnvAsInt("ASSISTANT_RATE_LIMIT_PER_MINUTE", 20),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@citizenhub.example"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "redis", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Events.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid EVENTS_DRIVER %q", c.Events.Driver)
	}
	if c.Store.Driver == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN required when STORE_DRIVER=postgres")
	}
	if c.Auth.AdminEmail == "" || c.Auth.AdminPassword == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must not be empty")
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

// SessionTTL returns the fixed session lifetime.
func (a AuthConfig) SessionTTL() time.Duration {
	return positiveDuration(a.SessionTTLMinutes, time.Minute, 20*time.Minute)
}

// SessionCheckInterval returns how often expired sessions are swept.
func (a AuthConfig) SessionCheckInterval() time.Duration {
	return positiveDuration(a.SessionCheckIntervalSeconds, time.Second, time.Minute)
}

// RefreshInterval returns the registry re-hydration poll interval.
func (s SyncConfig) RefreshInterval() time.Duration {
	return positiveDuration(s.RefreshIntervalSeconds, time.Second, 30*time.Second)
}

// ReconnectDelay returns the fixed delay between propagation reconnect attempts.
func (s SyncConfig) ReconnectDelay() time.Duration {
	return positiveDuration(s.ReconnectDelaySeconds, time.Second, 5*time.Second)
}

// Timeout returns the upstream request timeout.
func (a AssistantConfig) Timeout() time.Duration {
	return positiveDuration(a.TimeoutSeconds, time.Second, 15*time.Second)
}

func positiveDuration(value int, unit, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * unit
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
