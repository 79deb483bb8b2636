package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	devJWTSecret        = "vibelink-dev-access-secret"
	devJWTRefreshSecret = "vibelink-dev-refresh-secret"
)

type Config struct {
	Port        int
	BindAddress string
	Environment string
	CORSOrigin  string
	AppURL      string

	RateLimitWindow      time.Duration
	RateLimitMaxRequests int
	RateLimitStore       string

	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	JWTSecret        string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration

	NATSURL string

	LogLevel  string
	LogFormat string

	GameTotalRounds    int
	GameRoundDuration  time.Duration
	GameReviewDuration time.Duration
	MatchMinScore      float64
	RoomIdleTimeout    time.Duration

	AutoMigrate bool
}

// SetDefaults registers every key with its default and binds the
// environment variables whose names differ from the upper-cased key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 5000)
	v.SetDefault("bind", "0.0.0.0")
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("cors_origin", "http://localhost:3000")
	v.SetDefault("app_url", "http://localhost:3000")

	v.SetDefault("rate_limit_window_ms", 900000)
	v.SetDefault("rate_limit_max_requests", 100)
	v.SetDefault("rate_limit_store", "memory")

	v.SetDefault("db_driver", DriverPostgres)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "vibelink")
	v.SetDefault("db_password", "vibelink")
	v.SetDefault("db_name", "vibelink")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("redis_enabled", true)
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("jwt_secret", devJWTSecret)
	v.SetDefault("jwt_refresh_secret", devJWTRefreshSecret)
	v.SetDefault("jwt_access_ttl", 24*time.Hour)
	v.SetDefault("jwt_refresh_ttl", 7*24*time.Hour)

	v.SetDefault("nats_url", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("game_total_rounds", 5)
	v.SetDefault("game_round_duration", 60*time.Second)
	v.SetDefault("game_review_duration", 8*time.Second)
	v.SetDefault("match_min_score", 25.0)
	v.SetDefault("room_idle_timeout", 30*time.Minute)

	v.SetDefault("auto_migrate", true)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("environment", "NODE_ENV")
	_ = v.BindEnv("bind", "BIND_ADDRESS")
}

// Load reads a Config out of v. SetDefaults must have been called.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetInt("port"),
		BindAddress: v.GetString("bind"),
		Environment: strings.ToLower(v.GetString("environment")),
		CORSOrigin:  v.GetString("cors_origin"),
		AppURL:      strings.TrimRight(v.GetString("app_url"), "/"),

		RateLimitWindow:      time.Duration(v.GetInt64("rate_limit_window_ms")) * time.Millisecond,
		RateLimitMaxRequests: v.GetInt("rate_limit_max_requests"),
		RateLimitStore:       strings.ToLower(v.GetString("rate_limit_store")),

		DBDriver:   strings.ToLower(v.GetString("db_driver")),
		DBHost:     v.GetString("db_host"),
		DBPort:     v.GetInt("db_port"),
		DBUser:     v.GetString("db_user"),
		DBPassword: v.GetString("db_password"),
		DBName:     v.GetString("db_name"),
		DBSSLMode:  v.GetString("db_sslmode"),

		RedisEnabled:  v.GetBool("redis_enabled"),
		RedisHost:     v.GetString("redis_host"),
		RedisPort:     v.GetInt("redis_port"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		JWTSecret:        v.GetString("jwt_secret"),
		JWTRefreshSecret: v.GetString("jwt_refresh_secret"),
		JWTAccessTTL:     v.GetDuration("jwt_access_ttl"),
		JWTRefreshTTL:    v.GetDuration("jwt_refresh_ttl"),

		NATSURL: v.GetString("nats_url"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		GameTotalRounds:    v.GetInt("game_total_rounds"),
		GameRoundDuration:  v.GetDuration("game_round_duration"),
		GameReviewDuration: v.GetDuration("game_review_duration"),
		MatchMinScore:      v.GetFloat64("match_min_score"),
		RoomIdleTimeout:    v.GetDuration("room_idle_timeout"),

		AutoMigrate: v.GetBool("auto_migrate"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW_MS must be positive"))
	}
	if c.RateLimitMaxRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_REQUESTS must be positive"))
	}
	switch c.RateLimitStore {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_STORE must be memory or redis, got %q", c.RateLimitStore))
	}
	switch c.DBDriver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", c.DBDriver))
	}
	if c.RateLimitStore == "redis" && !c.RedisEnabled {
		errs = append(errs, errors.New("RATE_LIMIT_STORE=redis requires REDIS_ENABLED"))
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		errs = append(errs, errors.New("JWT token lifetimes must be positive"))
	}
	if c.IsProduction() {
		if c.JWTSecret == "" || c.JWTSecret == devJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		}
		if c.JWTRefreshSecret == "" || c.JWTRefreshSecret == devJWTRefreshSecret {
			errs = append(errs, errors.New("JWT_REFRESH_SECRET must be set in production"))
		}
	}
	if c.GameTotalRounds < 1 || c.GameTotalRounds > 20 {
		errs = append(errs, fmt.Errorf("GAME_TOTAL_ROUNDS must be between 1 and 20, got %d", c.GameTotalRounds))
	}
	if c.GameRoundDuration < time.Second {
		errs = append(errs, errors.New("GAME_ROUND_DURATION must be at least 1s"))
	}
	if c.GameReviewDuration < 0 {
		errs = append(errs, errors.New("GAME_REVIEW_DURATION must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

// CORSOrigins returns the normalized allowlist.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DatabaseURL is the postgres:// form golang-migrate expects.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)

	level := logger.Warn
	if cfg.IsProduction() {
		level = logger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// NewLogger builds the process logger. Unknown levels fall back to info and
// unknown formats to text.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
