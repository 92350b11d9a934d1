package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	AIQuota   AIQuotaConfig
	SMTP      SMTPConfig
	Frontend  FrontendConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig is optional; an empty URL disables event publishing and queued mail.
type NATSConfig struct {
	URL string
}

func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

type JWTConfig struct {
	AccessSecret        string
	RefreshSecret       string
	AccessExpiry        time.Duration
	RefreshExpiry       time.Duration
	PasswordResetExpiry time.Duration
}

// AIQuotaConfig holds the per-user AI usage limits.
type AIQuotaConfig struct {
	MaxUsage  int
	RangeDays int
	Backend   string
}

// Window returns the rolling quota window.
func (c AIQuotaConfig) Window() time.Duration {
	return time.Duration(c.RangeDays) * 24 * time.Hour
}

type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	Sender   string
}

func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

type FrontendConfig struct {
	BaseURL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	AuthMax       int
	AuthWindowSec int
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	QuotaBackendPostgres = "postgres"
	QuotaBackendRedis    = "redis"
)

func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile loads configuration from an optional dotenv file, overridden by
// environment variables.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(path), dotenv.ParserEnv("", ".", envKey))

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		AIQuota: AIQuotaConfig{
			MaxUsage:  k.Int("ai.max.usage.quota"),
			RangeDays: k.Int("ai.quota.time.range.days"),
			Backend:   strings.ToLower(k.String("ai.quota.backend")),
		},
		SMTP: SMTPConfig{
			Server:   k.String("smtp.server"),
			Port:     k.Int("smtp.port"),
			Username: k.String("smtp.username"),
			Password: k.String("smtp.password"),
			Sender:   k.String("email.sender"),
		},
		Frontend: FrontendConfig{
			BaseURL: strings.TrimRight(k.String("frontend.base.url"), "/"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		RateLimit: RateLimitConfig{
			AuthMax:       k.Int("rate.limit.auth.max"),
			AuthWindowSec: k.Int("rate.limit.auth.window"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "flashnotes"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "flashnotes"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if !k.Exists("ai.max.usage.quota") {
		cfg.AIQuota.MaxUsage = 100
	}
	if !k.Exists("ai.quota.time.range.days") {
		cfg.AIQuota.RangeDays = 30
	}
	if cfg.AIQuota.Backend == "" {
		cfg.AIQuota.Backend = QuotaBackendPostgres
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.Frontend.BaseURL == "" {
		cfg.Frontend.BaseURL = "http://localhost:5173"
	}
	if cfg.RateLimit.AuthMax == 0 {
		cfg.RateLimit.AuthMax = 20
	}
	if cfg.RateLimit.AuthWindowSec == 0 {
		cfg.RateLimit.AuthWindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.JWT.AccessExpiry, err = parseDuration(k, "jwt.access.expiry", "15m")
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}
	cfg.JWT.RefreshExpiry, err = parseDuration(k, "jwt.refresh.expiry", "168h")
	if err != nil {
		return nil, fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}
	cfg.JWT.PasswordResetExpiry, err = parseDuration(k, "password.reset.expiry", "1h")
	if err != nil {
		return nil, fmt.Errorf("parsing password reset expiry: %w", err)
	}

	return cfg, nil
}

// envKey maps FOO_BAR to foo.bar.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "."))
}

func parseDuration(k *koanf.Koanf, key, def string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = def
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
