package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SMARTCRM_"

type ServerConfig struct {
	Port        int      `koanf:"port" validate:"required,min=1,max=65535"`
	Mode        string   `koanf:"mode" validate:"omitempty,oneof=debug release test"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type DatabaseConfig struct {
	DSN             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret      string        `koanf:"jwt_secret" validate:"required,min=16"`
	TokenTTL       time.Duration `koanf:"token_ttl"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	LoginRPS       float64       `koanf:"login_rps"`
	LoginBurst     int           `koanf:"login_burst"`
	CookieSecure   bool          `koanf:"cookie_secure"`
}

type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type EmailConfig struct {
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromEmail    string `koanf:"from_email" validate:"omitempty,email"`
}

type TelegramConfig struct {
	BotToken string `koanf:"bot_token"`
}

type StorageConfig struct {
	Driver   string `koanf:"driver" validate:"required,oneof=local s3 gcs"`
	RootDir  string `koanf:"root_dir"`
	Bucket   string `koanf:"bucket" validate:"required_unless=Driver local"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
	Prefix   string `koanf:"prefix"`
}

type SchedulerConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Targets  string `koanf:"targets"`
	Aging    string `koanf:"aging"`
	Digest   string `koanf:"digest"`
	Sessions string `koanf:"sessions"`
}

type BootstrapConfig struct {
	AdminUsername string `koanf:"admin_username" validate:"required"`
	AdminPassword string `koanf:"admin_password" validate:"required"`
	AdminEmail    string `koanf:"admin_email" validate:"omitempty,email"`
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Redis     RedisConfig     `koanf:"redis"`
	Email     EmailConfig     `koanf:"email"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	Storage   StorageConfig   `koanf:"storage"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Bootstrap BootstrapConfig `koanf:"bootstrap"`
	LogLevel  string          `koanf:"log_level"`
}

// Load reads the yaml file at path (optional) and overlays SMARTCRM_* env vars.
// Nested keys use a double underscore: SMARTCRM_DATABASE__URL -> database.url.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}
	if c.Auth.SessionTimeout == 0 {
		c.Auth.SessionTimeout = time.Hour
	}
	if c.Auth.LoginRPS == 0 {
		c.Auth.LoginRPS = 1
	}
	if c.Auth.LoginBurst == 0 {
		c.Auth.LoginBurst = 5
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.RootDir == "" {
		c.Storage.RootDir = "./uploads"
	}
	if c.Scheduler.Targets == "" {
		c.Scheduler.Targets = "@every 1h"
	}
	if c.Scheduler.Aging == "" {
		c.Scheduler.Aging = "5 0 * * *"
	}
	if c.Scheduler.Digest == "" {
		c.Scheduler.Digest = "0 8 * * *"
	}
	if c.Scheduler.Sessions == "" {
		c.Scheduler.Sessions = "@every 15m"
	}
	if c.Bootstrap.AdminUsername == "" {
		c.Bootstrap.AdminUsername = "admin"
	}
	if c.Bootstrap.AdminPassword == "" {
		c.Bootstrap.AdminPassword = "admin123"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
