package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port     string
	GinMode  string
	Log      LogConfig
	Store    string
	Postgres PostgresConfig
	Redis    RedisConfig
	Nearby   NearbyConfig
	Upload   UploadConfig
	Http     HttpConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type PostgresConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	ConnectAttempts int
}

// DSN is the lib/pq connection URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type NearbyConfig struct {
	CacheTTL      time.Duration
	RetentionTTL  time.Duration
	SweepInterval time.Duration
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

type HttpConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	// TrustedProxies may set X-Forwarded-For; empty means the peer address is the client.
	TrustedProxies []string
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn(".env load warning", slog.Any("error", err))
	}

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Store: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		Postgres: PostgresConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "nearby_news"),
			User:            getEnv("DB_USER", "nearby"),
			Password:        getEnv("DB_PASS", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			ConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 10),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Nearby: NearbyConfig{
			CacheTTL:      getEnvDuration("NEARBY_CACHE_TTL", 30*time.Second),
			RetentionTTL:  getEnvDuration("RETENTION_TTL", 7*24*time.Hour),
			SweepInterval: getEnvDuration("RETENTION_SWEEP_INTERVAL", time.Minute),
		},
		Upload: UploadConfig{
			Dir:      getEnv("UPLOAD_DIR", "uploads/news"),
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 5<<20)),
		},
		Http: HttpConfig{
			RequestTimeout:  getEnvDuration("HTTP_REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 20),
			TrustedProxies:  getEnvList("TRUSTED_PROXIES"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Config loaded successfully",
		slog.String("port", cfg.Port),
		slog.String("store", cfg.Store),
		slog.String("postgres_db", cfg.Postgres.Database),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.Duration("retention_ttl", cfg.Nearby.RetentionTTL))

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	switch c.Store {
	case DriverPostgres:
		if c.Postgres.Host == "" {
			return errors.New("DB_HOST required")
		}
		if c.Postgres.ConnectAttempts < 1 {
			return errors.New("DB_CONNECT_ATTEMPTS must be at least 1")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store)
	}
	if c.Nearby.RetentionTTL <= 0 {
		return errors.New("RETENTION_TTL must be positive")
	}
	if c.Nearby.SweepInterval <= 0 {
		return errors.New("RETENTION_SWEEP_INTERVAL must be positive")
	}
	if c.Nearby.CacheTTL < 0 {
		return errors.New("NEARBY_CACHE_TTL must not be negative")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Http.RateLimitRPS <= 0 || c.Http.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
