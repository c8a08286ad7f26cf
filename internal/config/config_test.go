package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MySQL.DSN == "" {
		t.Error("MySQL DSN should not be empty")
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}

	if cfg.Mass.DefaultBatchSize != 300 {
		t.Errorf("Expected default batch size 300, got %d", cfg.Mass.DefaultBatchSize)
	}

	if cfg.Executor.Enabled {
		t.Error("Executor should be disabled by default")
	}
}

func TestLoad_MissingMySQLDSN(t *testing.T) {
	t.Setenv("MYSQL_DSN", "")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when MYSQL_DSN is missing")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("MYSQL_DSN", "custom:dsn@tcp(localhost:3306)/custom")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_PASS", "secret")
	t.Setenv("REDIS_DB", "5")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DISPATCH_BATCH_SIZE", "500")
	t.Setenv("MASS_TARGET_LIMIT", "80000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MySQL.DSN != "custom:dsn@tcp(localhost:3306)/custom" {
		t.Errorf("Expected custom MySQL DSN, got %s", cfg.MySQL.DSN)
	}
	if cfg.Redis.Addr != "redis.example.com:6379" {
		t.Errorf("Expected custom Redis addr, got %s", cfg.Redis.Addr)
	}
	if cfg.Redis.Password != "secret" {
		t.Errorf("Expected Redis password 'secret', got %s", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 5 {
		t.Errorf("Expected Redis DB 5, got %d", cfg.Redis.DB)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("Expected HTTPAddr :9090, got %s", cfg.HTTPAddr)
	}
	if cfg.Mass.DefaultBatchSize != 500 {
		t.Errorf("Expected batch size 500, got %d", cfg.Mass.DefaultBatchSize)
	}
	if cfg.Mass.DefaultTargetLimit != 80000 {
		t.Errorf("Expected target limit 80000, got %d", cfg.Mass.DefaultTargetLimit)
	}
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/test")
	t.Setenv("DISPATCH_BATCH_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Error("Expected error for non-positive batch size")
	}
}

func TestLoadFromINI_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ini")
	content := `[mysql]
dsn = ini:pass@tcp(db:3306)/wecom_ops

[http]
addr = :7070

[mass]
batch_size = 200

[executor]
enabled = true
interval_sec = 9
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("HTTP_ADDR", ":6060")
	t.Setenv("JWT_EXPIRE_MINUTES", "30")

	cfg, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI() failed: %v", err)
	}

	if cfg.MySQL.DSN != "ini:pass@tcp(db:3306)/wecom_ops" {
		t.Errorf("Expected DSN from INI, got %s", cfg.MySQL.DSN)
	}
	if cfg.HTTPAddr != ":6060" {
		t.Errorf("Expected env to override INI addr, got %s", cfg.HTTPAddr)
	}
	if cfg.Mass.DefaultBatchSize != 200 {
		t.Errorf("Expected batch size 200, got %d", cfg.Mass.DefaultBatchSize)
	}
	if !cfg.Executor.Enabled || cfg.Executor.IntervalSec != 9 {
		t.Errorf("Expected executor enabled every 9s, got %+v", cfg.Executor)
	}
	if cfg.JWT.ExpireMinutes != 30 {
		t.Errorf("Expected JWT_EXPIRE_MINUTES taken as minutes, got %d", cfg.JWT.ExpireMinutes)
	}
}

func TestLoadFromINI_JWTExpireSeconds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ini")
	content := `[mysql]
dsn = ini:pass@tcp(db:3306)/wecom_ops

[jwt]
expire_seconds = 7200
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("JWT_EXPIRE_MINUTES", "")

	cfg, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI() failed: %v", err)
	}
	if cfg.JWT.ExpireMinutes != 120 {
		t.Errorf("Expected 7200s from INI as 120 minutes, got %d", cfg.JWT.ExpireMinutes)
	}
}
