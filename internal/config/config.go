package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Lock         LockConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Classifier   ClassifierConfig
	Archive      ArchiveConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	Timezone              string
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	Driver              string
	WriteTimeoutSeconds int
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

// SQLiteConfig holds the local database file location.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// LockConfig selects how per-ticket mutual exclusion is provided.
type LockConfig struct {
	Backend      string
	TTLSeconds   int
	RetryMillis  int
	KeyNamespace string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	DefaultPassword       string
	MinPasswordLength     int
	AdminUsername         string
}

// NotificationConfig holds notification sinks.
type NotificationConfig struct {
	EmailFrom    string
	WebhookURL   string
	RedisChannel string
}

// ClassifierConfig configures the outbound classification endpoint.
type ClassifierConfig struct {
	Endpoint              string
	APIKey                string
	Model                 string
	MaxAttempts           int
	BackoffMillis         int
	RequestTimeoutSeconds int
}

// ArchiveConfig holds defaults for the archival sweep.
type ArchiveConfig struct {
	DefaultCutoffMonths int
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

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "school-support"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 90),
			Timezone:              getEnv("APP_TIMEZONE", "Asia/Hong_Kong"),
		},
		Store: StoreConfig{
			Driver:              strings.ToLower(getEnv("STORE_DRIVER", StoreDriverSQLite)),
			WriteTimeoutSeconds: getEnvAsInt("STORE_WRITE_TIMEOUT_SECONDS", 5),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "school_support.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		Lock: LockConfig{
			Backend:      strings.ToLower(getEnv("LOCK_BACKEND", LockBackendLocal)),
			TTLSeconds:   getEnvAsInt("LOCK_TTL_SECONDS", 60),
			RetryMillis:  getEnvAsInt("LOCK_RETRY_MILLIS", 50),
			KeyNamespace: getEnv("LOCK_KEY_NAMESPACE", "school-support:ticket-lock"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", env == "development"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			DefaultPassword:       getEnv("AUTH_DEFAULT_PASSWORD", "24750331"),
			MinPasswordLength:     getEnvAsInt("AUTH_MIN_PASSWORD_LENGTH", 8),
			AdminUsername:         getEnv("AUTH_ADMIN_USERNAME", "admin"),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
			RedisChannel: getEnv("NOTIFY_REDIS_CHANNEL", ""),
		},
		Classifier: ClassifierConfig{
			Endpoint:              getEnv("CLASSIFIER_ENDPOINT", "https://text.pollinations.ai/openai"),
			APIKey:                os.Getenv("CLASSIFIER_API_KEY"),
			Model:                 getEnv("CLASSIFIER_MODEL", "openai"),
			MaxAttempts:           getEnvAsInt("CLASSIFIER_MAX_ATTEMPTS", 3),
			BackoffMillis:         getEnvAsInt("CLASSIFIER_BACKOFF_MILLIS", 1000),
			RequestTimeoutSeconds: getEnvAsInt("CLASSIFIER_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Archive: ArchiveConfig{
			DefaultCutoffMonths: getEnvAsInt("ARCHIVE_DEFAULT_CUTOFF_MONTHS", 6),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
		}
	case StoreDriverSQLite, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Lock.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("LOCK_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.Lock.Backend)
	}
	if c.Store.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("STORE_WRITE_TIMEOUT_SECONDS must be positive")
	}
	// Ticket creation runs two classification phases inside one request.
	if timeout := c.App.RequestTimeout(); timeout > 0 && timeout < 2*c.Classifier.PhaseBudget() {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT_SECONDS (%s) must cover two classification phases (%s)",
			timeout, 2*c.Classifier.PhaseBudget())
	}
	if c.Archive.DefaultCutoffMonths < 0 {
		return fmt.Errorf("ARCHIVE_DEFAULT_CUTOFF_MONTHS must not be negative")
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

// Location resolves the service time zone, falling back to a fixed UTC+8 zone.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.FixedZone("HKT", 8*60*60)
	}
	return loc
}

// TTL returns the lock expiry.
func (l LockConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

// RetryInterval returns the lock acquisition polling interval.
func (l LockConfig) RetryInterval() time.Duration {
	return time.Duration(l.RetryMillis) * time.Millisecond
}

// WriteTimeout bounds a single store write.
func (s StoreConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// PhaseBudget is the longest one classification phase can take with every attempt timing out.
func (c ClassifierConfig) PhaseBudget() time.Duration {
	if c.MaxAttempts <= 0 {
		return 0
	}
	attempts := time.Duration(c.MaxAttempts)
	return attempts*c.RequestTimeout() + (attempts-1)*c.Backoff()
}

// Backoff returns the wait between classification attempts.
func (c ClassifierConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMillis) * time.Millisecond
}

// RequestTimeout returns the per-attempt timeout.
func (c ClassifierConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
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
