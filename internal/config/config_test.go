package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.HTTPAddr != ":5000" {
		t.Errorf("HTTPAddr = %q, want :5000", cfg.App.HTTPAddr)
	}
	if cfg.App.FrontendOrigin != "http://localhost:5173" {
		t.Errorf("FrontendOrigin = %q", cfg.App.FrontendOrigin)
	}
	if cfg.Security.TokenExpiry != 7*24*time.Hour {
		t.Errorf("TokenExpiry = %v, want 168h", cfg.Security.TokenExpiry)
	}
	if cfg.Upload.MaxImageSize != 5<<20 {
		t.Errorf("MaxImageSize = %d, want 5MB", cfg.Upload.MaxImageSize)
	}
}

func TestLoadFileWithPartialFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
  "app": {"http_addr": ":8080"},
  "security": {"jwt_secret": "file-secret", "token_expiry": "24h"}
}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.App.HTTPAddr)
	}
	if cfg.Security.JWTSecret != "file-secret" {
		t.Errorf("JWTSecret = %q", cfg.Security.JWTSecret)
	}
	if cfg.Security.TokenExpiry != 24*time.Hour {
		t.Errorf("TokenExpiry = %v, want 24h", cfg.Security.TokenExpiry)
	}
	// 未设置的字段要回落到默认值
	if cfg.App.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.App.LogLevel)
	}
	if cfg.MySQL.DSN == "" {
		t.Error("DSN should fall back to default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("JWT_EXPIRE", "48h")
	t.Setenv("FRONTEND_URL", "https://campus.example.edu")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want :9000", cfg.App.HTTPAddr)
	}
	if cfg.Security.JWTSecret != "env-secret" {
		t.Errorf("JWTSecret = %q, want env-secret", cfg.Security.JWTSecret)
	}
	if cfg.Security.TokenExpiry != 48*time.Hour {
		t.Errorf("TokenExpiry = %v, want 48h", cfg.Security.TokenExpiry)
	}
	if cfg.App.FrontendOrigin != "https://campus.example.edu" {
		t.Errorf("FrontendOrigin = %q", cfg.App.FrontendOrigin)
	}
}

func TestDSNBuiltFromEnvParts(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_USER", "campus")
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("DB_NAME", "campusloop_prod")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	dsn := cfg.MySQL.DSN
	for _, part := range []string{"db.internal:3307", "campus:hunter2@", "/campusloop_prod"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN %q missing %q", dsn, part)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	original := getDefaultConfig()
	original.App.HTTPAddr = ":7000"
	original.Security.TokenExpiry = 12 * time.Hour
	if err := Save(path, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.App.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want :7000", loaded.App.HTTPAddr)
	}
	if loaded.Security.TokenExpiry != 12*time.Hour {
		t.Errorf("TokenExpiry = %v, want 12h", loaded.Security.TokenExpiry)
	}
}
