package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSecret is returned when JWT_SECRET is not set.
var ErrMissingSecret = errors.New("JWT_SECRET is required")

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Mongo     MongoConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Seed      SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	ProxyHeader           string
}

// MongoConfig holds the user store connection values.
type MongoConfig struct {
	Driver         string
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// PostgresConfig holds the audit store connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
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
	JWTSecret        string
	DefaultTokenTTL  time.Duration
	RegisterTokenTTL time.Duration
	LoginTokenTTL    time.Duration
	BcryptCost       int
	DenylistEnabled  bool
}

// RateLimitConfig configures the limiter guarding sensitive endpoints.
type RateLimitConfig struct {
	Backend                  string
	SweepInterval            time.Duration
	ResetPasswordMaxAttempts int
	ResetPasswordWindow      time.Duration
}

// SeedConfig feeds the super-admin bootstrap command.
type SeedConfig struct {
	Username string
	Nickname string
	Email    string
	Mobile   string
	Password string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	defaultTTL, err := getEnvAsDuration("JWT_EXPIRES_IN", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	registerTTL, err := getEnvAsDuration("JWT_REGISTER_EXPIRES_IN", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	loginTTL, err := getEnvAsDuration("JWT_LOGIN_EXPIRES_IN", defaultTTL)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := getEnvAsDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	resetWindow, err := getEnvAsDuration("RESET_PASSWORD_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	mongoTimeout, err := getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "account-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", getEnv("PORT", "3000")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			ProxyHeader:           os.Getenv("HTTP_PROXY_HEADER"),
		},
		Mongo: MongoConfig{
			Driver:         getEnv("USER_STORE_DRIVER", "mongo"),
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DATABASE", "eco_gadget_recycle"),
			ConnectTimeout: mongoTimeout,
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
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
		Auth: AuthConfig{
			JWTSecret:        secret,
			DefaultTokenTTL:  defaultTTL,
			RegisterTokenTTL: registerTTL,
			LoginTokenTTL:    loginTTL,
			BcryptCost:       getEnvAsInt("AUTH_BCRYPT_COST", 10),
			DenylistEnabled:  getEnvAsBool("AUTH_TOKEN_DENYLIST", false),
		},
		RateLimit: RateLimitConfig{
			Backend:                  getEnv("RATE_LIMIT_BACKEND", "memory"),
			SweepInterval:            sweepInterval,
			ResetPasswordMaxAttempts: getEnvAsInt("RESET_PASSWORD_MAX_ATTEMPTS", 5),
			ResetPasswordWindow:      resetWindow,
		},
		Seed: SeedConfig{
			Username: getEnv("SUPER_ADMIN_USERNAME", "superAdmin"),
			Nickname: getEnv("SUPER_ADMIN_NICKNAME", "root"),
			Email:    getEnv("SUPER_ADMIN_EMAIL", "superadmin@example.com"),
			Mobile:   getEnv("SUPER_ADMIN_MOBILE", "13800000000"),
			Password: os.Getenv("SUPER_ADMIN_PASSWORD"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether debug detail must be withheld from responses.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ParseDuration accepts Go durations plus a "d" suffix for days, e.g. "7d".
func ParseDuration(val string) (time.Duration, error) {
	val = strings.TrimSpace(val)
	if days, ok := strings.CutSuffix(val, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(val)
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

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return parsed, nil
}
