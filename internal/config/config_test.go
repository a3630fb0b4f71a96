package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_DRIVER", "REDIS_ADDR", "RETENTION_TTL", "NEARBY_CACHE_TTL", "UPLOAD_MAX_BYTES"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Store != DriverPostgres {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Redis.Enabled() {
		t.Error("redis enabled without REDIS_ADDR")
	}
	if cfg.Nearby.RetentionTTL != 168*time.Hour || cfg.Nearby.CacheTTL != 30*time.Second {
		t.Errorf("nearby = %+v", cfg.Nearby)
	}
	if cfg.Upload.MaxBytes != 5<<20 {
		t.Errorf("upload max = %d", cfg.Upload.MaxBytes)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RETENTION_TTL", "48h")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != DriverMemory || !cfg.Redis.Enabled() {
		t.Errorf("unexpected %+v", cfg)
	}
	if cfg.Nearby.RetentionTTL != 48*time.Hour || cfg.Http.RateLimitRPS != 2.5 {
		t.Errorf("overrides not applied: %+v %+v", cfg.Nearby, cfg.Http)
	}
	if cfg.Postgres.Port != 5432 {
		t.Errorf("bad int should fall back to default, got %d", cfg.Postgres.Port)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":             "mongo",
		"PORT":                     "eighty",
		"RETENTION_TTL":            "-1h",
		"RETENTION_SWEEP_INTERVAL": "0s",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s accepted", key, val)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, Database: "news", User: "scout", Password: "p@ss word", SSLMode: "disable"}
	dsn := p.DSN()
	if !strings.HasPrefix(dsn, "postgres://scout:p%40ss%20word@db:5432/news") || !strings.HasSuffix(dsn, "?sslmode=disable") {
		t.Errorf("dsn = %s", dsn)
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Http.TrustedProxies != nil {
		t.Errorf("default trusted proxies = %v, want none", cfg.Http.TrustedProxies)
	}

	t.Setenv("TRUSTED_PROXIES", " 10.0.0.1, 172.16.0.0/12 ,")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := strings.Join(cfg.Http.TrustedProxies, "|"); got != "10.0.0.1|172.16.0.0/12" {
		t.Errorf("trusted proxies = %q", got)
	}
}
