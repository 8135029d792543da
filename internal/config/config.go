package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Ozon      OzonConfig
	Dedup     DedupConfig
	Queue     QueueConfig
	Scheduler SchedulerConfig
	Retry     RetryConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// LoggerConfig configures logging behavior. Format is json or console.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines operator session parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// OzonConfig describes the marketplace seller API.
type OzonConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	ChatHistoryLimit  int
	ChatListPageSize  int
	FileProxyPrefix   string
}

// DedupConfig selects the dedup backend and its TTLs.
type DedupConfig struct {
	Backend         string
	MessageTTL      time.Duration
	ProfileGuardTTL time.Duration
	OrderTTL        time.Duration
}

// QueueConfig sizes the in-process task queue.
type QueueConfig struct {
	Partitions int
	Buffer     int
}

// SchedulerConfig holds polling intervals.
type SchedulerConfig struct {
	ChatInterval     time.Duration
	QuestionInterval time.Duration
	ReviewInterval   time.Duration
	ReviewStagger    time.Duration
	Concurrency      int
	RunOnStart       bool
}

// RetryConfig holds reschedule delays per operation.
type RetryConfig struct {
	ChatSendDelay       time.Duration
	QuestionAnswerDelay time.Duration
	ReviewCommentDelay  time.Duration
	MarkReadDelay       time.Duration
	ReviewFetchDelay    time.Duration
	MaxAttempts         int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("OZON_REQUESTS_PER_SECOND", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OZON_REQUESTS_PER_SECOND: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ozon-support"),
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
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Ozon: OzonConfig{
			BaseURL:           getEnv("OZON_BASE_URL", "https://api-seller.ozon.ru"),
			Timeout:           getEnvAsDuration("OZON_TIMEOUT", 30*time.Second),
			RequestsPerSecond: rps,
			Burst:             getEnvAsInt("OZON_BURST", 5),
			ChatHistoryLimit:  getEnvAsInt("OZON_CHAT_HISTORY_LIMIT", 50),
			ChatListPageSize:  getEnvAsInt("OZON_CHAT_LIST_PAGE_SIZE", 100),
			FileProxyPrefix:   getEnv("OZON_FILE_PROXY_PREFIX", "/admin/ozon-support/files"),
		},
		Dedup: DedupConfig{
			Backend:         getEnv("DEDUP_BACKEND", "redis"),
			MessageTTL:      getEnvAsDuration("DEDUP_MESSAGE_TTL", 24*time.Hour),
			ProfileGuardTTL: getEnvAsDuration("DEDUP_PROFILE_GUARD_TTL", time.Minute),
			OrderTTL:        getEnvAsDuration("DEDUP_ORDER_TTL", 24*time.Hour),
		},
		Queue: QueueConfig{
			Partitions: getEnvAsInt("QUEUE_PARTITIONS", 8),
			Buffer:     getEnvAsInt("QUEUE_BUFFER", 256),
		},
		Scheduler: SchedulerConfig{
			ChatInterval:     getEnvAsDuration("SCHEDULER_CHAT_INTERVAL", 5*time.Minute),
			QuestionInterval: getEnvAsDuration("SCHEDULER_QUESTION_INTERVAL", 5*time.Minute),
			ReviewInterval:   getEnvAsDuration("SCHEDULER_REVIEW_INTERVAL", time.Hour),
			ReviewStagger:    getEnvAsDuration("SCHEDULER_REVIEW_STAGGER", 5*time.Second),
			Concurrency:      getEnvAsInt("SCHEDULER_CONCURRENCY", 4),
			RunOnStart:       getEnvAsBool("SCHEDULER_RUN_ON_START", false),
		},
		Retry: RetryConfig{
			ChatSendDelay:       getEnvAsDuration("RETRY_CHAT_SEND_DELAY", time.Minute),
			QuestionAnswerDelay: getEnvAsDuration("RETRY_QUESTION_ANSWER_DELAY", time.Minute),
			ReviewCommentDelay:  getEnvAsDuration("RETRY_REVIEW_COMMENT_DELAY", time.Minute),
			MarkReadDelay:       getEnvAsDuration("RETRY_MARK_READ_DELAY", 10*time.Minute),
			ReviewFetchDelay:    getEnvAsDuration("RETRY_REVIEW_FETCH_DELAY", 10*time.Minute),
			MaxAttempts:         getEnvAsInt("RETRY_MAX_ATTEMPTS", 10),
		},
	}

	if cfg.Dedup.Backend != "redis" && cfg.Dedup.Backend != "memory" {
		return nil, fmt.Errorf("invalid DEDUP_BACKEND %q: want redis or memory", cfg.Dedup.Backend)
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
