package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != "8080" {
		t.Fatalf("want default port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.NotifyMaxAttempts != 5 {
		t.Fatalf("want 5 max attempts, got %d", cfg.NotifyMaxAttempts)
	}
	if cfg.NotifyVisibility != 30*time.Second {
		t.Fatalf("want 30s visibility, got %v", cfg.NotifyVisibility)
	}
	if cfg.OTPRateRefill != 0.05 {
		t.Fatalf("want 0.05 refill, got %v", cfg.OTPRateRefill)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("NOTIFY_MAX_ATTEMPTS", "3")
	t.Setenv("NOTIFY_VISIBILITY", "45s")
	t.Setenv("ARTIFACT_S3_PATH_STYLE", "true")
	t.Setenv("OTP_RATE_REFILL_PER_SEC", "0.1")

	cfg := Load()
	if cfg.HTTPPort != "9999" {
		t.Fatalf("want 9999, got %s", cfg.HTTPPort)
	}
	if cfg.NotifyMaxAttempts != 3 {
		t.Fatalf("want 3, got %d", cfg.NotifyMaxAttempts)
	}
	if cfg.NotifyVisibility != 45*time.Second {
		t.Fatalf("want 45s, got %v", cfg.NotifyVisibility)
	}
	if !cfg.ArtifactS3PathStyle {
		t.Fatal("want path style enabled")
	}
	if cfg.OTPRateRefill != 0.1 {
		t.Fatalf("want 0.1, got %v", cfg.OTPRateRefill)
	}
}

func TestLoadIgnoresMalformed(t *testing.T) {
	t.Setenv("NOTIFY_MAX_ATTEMPTS", "lots")
	t.Setenv("NOTIFY_VISIBILITY", "soon")

	cfg := Load()
	if cfg.NotifyMaxAttempts != 5 || cfg.NotifyVisibility != 30*time.Second {
		t.Fatalf("malformed env must fall back to defaults, got %d %v", cfg.NotifyMaxAttempts, cfg.NotifyVisibility)
	}
}
