package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the ticket engine.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Discord    DiscordConfig
	Auth       AuthConfig
	Escalation EscalationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
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

// DiscordConfig holds chat-platform credentials.
type DiscordConfig struct {
	BotToken string
}

// AuthConfig defines parameters for the API bearer-token gate.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// EscalationConfig tunes the overdue-escalation job and prompt expiry.
type EscalationConfig struct {
	TickIntervalMinutes    int
	InitialDelayMinutes    int
	ThresholdHours         int
	PromptTimeoutMinutes   int
	MaxResolutionReasonLen int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
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
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Discord: DiscordConfig{
			BotToken: os.Getenv("DISCORD_BOT_TOKEN"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Escalation: EscalationConfig{
			TickIntervalMinutes:    getEnvAsInt("ESCALATION_TICK_INTERVAL_MINUTES", 60),
			InitialDelayMinutes:    getEnvAsInt("ESCALATION_INITIAL_DELAY_MINUTES", 1),
			ThresholdHours:         getEnvAsInt("ESCALATION_THRESHOLD_HOURS", 24),
			PromptTimeoutMinutes:   getEnvAsInt("PROMPT_TIMEOUT_MINUTES", 5),
			MaxResolutionReasonLen: getEnvAsInt("MAX_RESOLUTION_REASON_LENGTH", 1000),
		},
	}

	return cfg, nil
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

// TickInterval returns the escalation loop interval.
func (e EscalationConfig) TickInterval() time.Duration {
	if e.TickIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(e.TickIntervalMinutes) * time.Minute
}

// InitialDelay returns the delay before the first escalation tick.
func (e EscalationConfig) InitialDelay() time.Duration {
	if e.InitialDelayMinutes <= 0 {
		return 0
	}
	return time.Duration(e.InitialDelayMinutes) * time.Minute
}

// PromptTimeout returns how long confirmation prompts stay actionable.
func (e EscalationConfig) PromptTimeout() time.Duration {
	if e.PromptTimeoutMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(e.PromptTimeoutMinutes) * time.Minute
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
