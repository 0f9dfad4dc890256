package config

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := New(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("New() error = %v, want missing JWT_SECRET", err)
	}

	// Offline tools do not need it.
	if _, err := Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATA_PATH", "/var/lib/sportstats")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example,https://b.example")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.ServerAddr != ":3000" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.QueryTimeout != 5*time.Second {
		t.Errorf("TokenTTL = %v, QueryTimeout = %v", cfg.TokenTTL, cfg.QueryTimeout)
	}
	if got := cfg.StatsDBPath(); got != filepath.Join("/var/lib/sportstats", "database.sqlite") {
		t.Errorf("StatsDBPath = %q", got)
	}
	if got := cfg.AuthDBPath(); got != filepath.Join("/var/lib/sportstats", "users_database.sqlite") {
		t.Errorf("AuthDBPath = %q", got)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowOrigins = %v", cfg.CORSAllowOrigins)
	}
	if cfg.GoogleOAuthEnabled() || cfg.SMTPEnabled() {
		t.Error("optional integrations should be off by default")
	}
}

func TestNewRejectsBadRateLimit(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_REQUESTS", "0")
	if _, err := New(); err == nil {
		t.Fatal("expected an error for a zero request quota")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	logger.Warn("careful", "n", 1)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"msg":"careful"`) {
		t.Errorf("output = %q, want JSON", buf.String())
	}

	if lvl := parseLevel("nonsense"); lvl != slog.LevelInfo {
		t.Errorf("parseLevel(nonsense) = %v", lvl)
	}
}
