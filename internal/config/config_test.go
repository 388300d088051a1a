package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "DATABASE_AUTO_MIGRATE", "REDIS_ADDR", "REDIS_DB",
		"CATALOG_CACHE_TTL_SECONDS", "CATALOG_FIXTURE", "LOG_LEVEL",
		"PROMOCODE_ENFORCE_START_DATE", "REQUEST_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.Address())
	}
	if cfg.EnforcePromocodeStartDate {
		t.Fatalf("expected promocode start date check to be off by default")
	}
	if cfg.CatalogCacheTTL() != time.Minute {
		t.Fatalf("expected 60s cache ttl, got %s", cfg.CatalogCacheTTL())
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %q", cfg.LogLevel)
	}
	if cfg.AutoMigrate {
		t.Fatalf("expected auto migrate to be off by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PROMOCODE_ENFORCE_START_DATE", "true")
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "0")
	t.Setenv("CATALOG_FIXTURE", " fixtures/catalog.yaml ")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "-4")

	cfg := Load()
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Address())
	}
	if !cfg.EnforcePromocodeStartDate {
		t.Fatalf("expected promocode start date check to be enabled")
	}
	if cfg.CatalogCacheTTL() != 0 {
		t.Fatalf("expected cache disabled, got %s", cfg.CatalogCacheTTL())
	}
	if cfg.CatalogFixture != "fixtures/catalog.yaml" {
		t.Fatalf("expected trimmed fixture path, got %q", cfg.CatalogFixture)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.RedisDB)
	}
	if cfg.RequestTimeout() != 15*time.Second {
		t.Fatalf("expected invalid timeout to fall back to 15s, got %s", cfg.RequestTimeout())
	}
}

func TestLoadIgnoresMalformedBool(t *testing.T) {
	t.Setenv("PROMOCODE_ENFORCE_START_DATE", "sometimes")

	if Load().EnforcePromocodeStartDate {
		t.Fatalf("expected malformed bool to fall back to false")
	}
}
