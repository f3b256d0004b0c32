package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL", "ARK_TEMPERATURE",
		"ARK_MAX_TOKENS", "AI_TIMEOUT", "STORAGE_DRIVER", "CORS_ALLOWED_ORIGINS", "LIVE_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":5000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.AI.Enabled() {
		t.Fatal("AI should be disabled without credentials")
	}
	if cfg.AI.Timeout != 10*time.Second {
		t.Fatalf("unexpected AI timeout %v", cfg.AI.Timeout)
	}
	if cfg.AI.MaxTokens == nil || *cfg.AI.MaxTokens != 500 {
		t.Fatalf("unexpected max tokens %v", cfg.AI.MaxTokens)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.7 {
		t.Fatalf("unexpected temperature %v", cfg.AI.Temperature)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Fatalf("unexpected storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Live.Interval != 30*time.Second {
		t.Fatalf("unexpected live interval %v", cfg.Live.Interval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:8080")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("ARK_MODEL", "doubao-pro")
	t.Setenv("AI_TIMEOUT", "3s")
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("SQLITE_DATABASE", "/tmp/bus.db")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173, https://lux.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if !cfg.AI.Enabled() {
		t.Fatal("expected AI enabled")
	}
	if cfg.AI.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.AI.Timeout)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.SQLitePath != "/tmp/bus.db" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://lux.example" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":           "80 80",
		"AI_TIMEOUT":     "soon",
		"STORAGE_DRIVER": "mongo",
		"ARK_MAX_TOKENS": "many",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestPostgresRequiresURL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}
