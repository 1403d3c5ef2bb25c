package config

import (
	"net/netip"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FRIENDBOOK_PORT", "")
	t.Setenv("FRIENDBOOK_STORE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 4000 {
		t.Fatalf("expected default port 4000 got %d", cfg.AppPort)
	}
	if cfg.Store != StorePostgres {
		t.Fatalf("expected postgres store got %q", cfg.Store)
	}
	if cfg.RateLimitRequests != 40 || cfg.RateLimitWindow != time.Minute {
		t.Fatalf("unexpected rate limit defaults: %d per %v", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if cfg.MaxUploadBytes != 4*1024*1024 {
		t.Fatalf("expected 4MiB upload limit got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FRIENDBOOK_PORT", "9090")
	t.Setenv("FRIENDBOOK_STORE", "Mongo")
	t.Setenv("FRIENDBOOK_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("FRIENDBOOK_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("FRIENDBOOK_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 9090 || cfg.Store != StoreMongo {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.AccessTokenTTL != 5*time.Minute || cfg.MaxUploadBytes != 1024 {
		t.Fatalf("unexpected parsed values: %v %d", cfg.AccessTokenTTL, cfg.MaxUploadBytes)
	}
	if cfg.Events.RedisAddr != "localhost:6379" {
		t.Fatalf("expected redis addr override got %q", cfg.Events.RedisAddr)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FRIENDBOOK_STORE", "sqlite")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FRIENDBOOK_STORE", "")
	t.Setenv("FRIENDBOOK_PORT", "not-a-number")
	t.Setenv("FRIENDBOOK_RATE_LIMIT_WINDOW", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 4000 || cfg.RateLimitWindow != time.Minute {
		t.Fatalf("expected fallbacks got port=%d window=%v", cfg.AppPort, cfg.RateLimitWindow)
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FRIENDBOOK_STORE", "")
	t.Setenv("FRIENDBOOK_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("192.168.1.7/32")}
	if len(cfg.TrustedProxies) != len(want) {
		t.Fatalf("expected %v got %v", want, cfg.TrustedProxies)
	}
	for i := range want {
		if cfg.TrustedProxies[i] != want[i] {
			t.Fatalf("expected %v got %v", want, cfg.TrustedProxies)
		}
	}

	t.Setenv("FRIENDBOOK_TRUSTED_PROXIES", "")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Fatalf("expected no trusted proxies by default, got %v", cfg.TrustedProxies)
	}

	t.Setenv("FRIENDBOOK_TRUSTED_PROXIES", "not-an-ip")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid proxy entry")
	}
}
