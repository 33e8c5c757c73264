package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, expected %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Invitation.TTLHours != 72 {
		t.Errorf("TTLHours = %d, expected 72", cfg.Invitation.TTLHours)
	}
	if cfg.JWT.ExpireHour != 24 {
		t.Errorf("ExpireHour = %d, expected 24", cfg.JWT.ExpireHour)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
	}{
		{"host only", "redis://localhost:6379", "localhost:6379", "", 0},
		{"with db", "redis://cache:6380/2", "cache:6380", "", 2},
		{"with password", "redis://:s3cret@cache:6379/1", "cache:6379", "s3cret", 1},
		{"user and password", "redis://app:pw@cache:6379", "cache:6379", "pw", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.parseRedisURL(tt.url)
			if cfg.Redis.Addr != tt.addr {
				t.Errorf("Addr = %q, expected %q", cfg.Redis.Addr, tt.addr)
			}
			if cfg.Redis.Password != tt.password {
				t.Errorf("Password = %q, expected %q", cfg.Redis.Password, tt.password)
			}
			if cfg.Redis.DB != tt.db {
				t.Errorf("DB = %d, expected %d", cfg.Redis.DB, tt.db)
			}
		})
	}
}

func TestLoad_FileKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: \"9090\"\ninvitation:\n  ttl_hours: 12\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" && os.Getenv("SERVER_PORT") == "" {
		t.Errorf("Port = %q, expected %q", cfg.Server.Port, "9090")
	}
	if cfg.Invitation.TTLHours != 12 && os.Getenv("INVITATION_TTL_HOURS") == "" {
		t.Errorf("TTLHours = %d, expected 12", cfg.Invitation.TTLHours)
	}
	if cfg.Database.Driver == "" {
		t.Error("Driver should fall back to the default")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DB_DSN", "file:override.db")
	t.Setenv("REDIS_URL", "redis://:pw@redis:6379/3")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.DSN != "file:override.db" {
		t.Errorf("DSN = %q, expected override", cfg.Database.DSN)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 3 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
}

func TestLoad_SMTPEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Mail.Enabled || cfg.Mail.Host != "smtp.example.com" || cfg.Mail.Port != 2525 {
		t.Errorf("unexpected mail config: %+v", cfg.Mail)
	}
}
