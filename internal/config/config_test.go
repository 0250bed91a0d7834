package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Timezone != "Asia/Manila" {
		t.Fatalf("timezone default: got %q", cfg.Timezone)
	}
	if cfg.QRCodeTTL != 5*time.Minute {
		t.Fatalf("qr ttl default: got %s", cfg.QRCodeTTL)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("sweep interval default: got %s", cfg.SweepInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QR_TTL", "90s")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("RATE_LIMIT_PER_MIN", "10")

	cfg := Load()
	if cfg.QRCodeTTL != 90*time.Second {
		t.Fatalf("QR_TTL override: got %s", cfg.QRCodeTTL)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Fatalf("SWEEP_INTERVAL override: got %s", cfg.SweepInterval)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("TIMEZONE override: got %q", cfg.Timezone)
	}
	if cfg.RateLimitPerMin != 10 {
		t.Fatalf("RATE_LIMIT_PER_MIN override: got %d", cfg.RateLimitPerMin)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("QR_TTL", "not-a-duration")
	if cfg := Load(); cfg.QRCodeTTL != 5*time.Minute {
		t.Fatalf("invalid QR_TTL should fall back, got %s", cfg.QRCodeTTL)
	}
}
