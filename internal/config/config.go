package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Redis      RedisConfig      `yaml:"redis"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Invitation InvitationConfig `yaml:"invitation"`
	Audit      AuditConfig      `yaml:"audit"`
	Admin      AdminConfig      `yaml:"admin"`
	Mail       MailConfig       `yaml:"mail"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Mode     string `yaml:"mode"`      // debug, release, test
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	ExpireHour        int    `yaml:"expire_hour"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour"`
}

// RedisConfig enables the shared rate limiter. When disabled the limiter is per-process.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig applies to the unauthenticated auth endpoints.
type RateLimitConfig struct {
	RPS           float64 `yaml:"rps"`
	Burst         int     `yaml:"burst"`
	WindowSeconds int     `yaml:"window_seconds"` // redis fixed window
	MaxRequests   int     `yaml:"max_requests"`   // redis fixed window
}

type InvitationConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

type AuditConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// AdminConfig seeds a staff account on first start when both fields are set.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// MailConfig controls invitation emails. Nothing is sent unless Enabled and Host are set.
type MailConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	From      string `yaml:"from"`
	UseTLS    bool   `yaml:"use_tls"`
	AcceptURL string `yaml:"accept_url"` // token is appended, e.g. https://app.example.com/invitations/

	TimeoutSeconds int `yaml:"timeout_seconds"` // bounds dial plus the whole SMTP exchange
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     "8080",
			Mode:     "debug",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "taskboard.db",
		},
		JWT: JWTConfig{
			Secret:            "taskboard-secret-key-change-in-production",
			ExpireHour:        24,
			RefreshExpireHour: 720,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		RateLimit: RateLimitConfig{
			RPS:           5,
			Burst:         10,
			WindowSeconds: 60,
			MaxRequests:   30,
		},
		Invitation: InvitationConfig{
			TTLHours: 72,
		},
		Audit: AuditConfig{
			RetentionDays: 30,
		},
		Mail: MailConfig{
			Port:           587,
			TimeoutSeconds: 15,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Server.LogLevel = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if hours := os.Getenv("JWT_EXPIRE_HOUR"); hours != "" {
		if n, err := strconv.Atoi(hours); err == nil && n > 0 {
			c.JWT.ExpireHour = n
		}
	}
	if ttl := os.Getenv("INVITATION_TTL_HOURS"); ttl != "" {
		if n, err := strconv.Atoi(ttl); err == nil && n > 0 {
			c.Invitation.TTLHours = n
		}
	}
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		c.Admin.Email = email
	}
	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		c.Admin.Password = password
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.Mail.Enabled = true
		c.Mail.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			c.Mail.Port = n
		}
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		c.Mail.Username = user
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		c.Mail.Password = password
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		c.Mail.From = from
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
