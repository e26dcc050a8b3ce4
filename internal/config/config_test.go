package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RateLimit != 120 {
		t.Errorf("RateLimit = %d, want 120", cfg.RateLimit)
	}
	if cfg.RateWindow != time.Minute {
		t.Errorf("RateWindow = %v, want 1m", cfg.RateWindow)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_WINDOW", "30s")
	t.Setenv("DETERMINISTIC", "true")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.RateLimit != 5 {
		t.Errorf("RateLimit = %d", cfg.RateLimit)
	}
	if cfg.RateWindow != 30*time.Second {
		t.Errorf("RateWindow = %v", cfg.RateWindow)
	}
	if !cfg.Deterministic {
		t.Error("Deterministic not picked up")
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("RATE_LIMIT", "lots")
	t.Setenv("RATE_WINDOW", "soon")
	t.Setenv("DETERMINISTIC", "maybe")

	cfg := Load()
	if cfg.RateLimit != 120 {
		t.Errorf("RateLimit = %d, want default 120", cfg.RateLimit)
	}
	if cfg.RateWindow != time.Minute {
		t.Errorf("RateWindow = %v, want default 1m", cfg.RateWindow)
	}
	if cfg.Deterministic {
		t.Error("malformed bool should fall back to default")
	}
}
