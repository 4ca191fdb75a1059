// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the API server.
type Config struct {
	Env  string `envconfig:"ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPass   string `envconfig:"REDIS_PASSWORD" default:""`

	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	AccessExpiry  time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"15m"`
	RefreshExpiry time.Duration `envconfig:"JWT_REFRESH_EXPIRY" default:"24h"`

	// ActivationTimeout bounds the age of account-activation tokens.
	ActivationTimeout time.Duration `envconfig:"ACTIVATION_TIMEOUT" default:"72h"`
	ResetTimeout      time.Duration `envconfig:"PASSWORD_RESET_TIMEOUT" default:"24h"`

	// LoginFailureTTL bounds how long failed-login counters survive in redis.
	LoginFailureTTL time.Duration `envconfig:"LOGIN_FAILURE_TTL" default:"15m"`

	FrontendURL  string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	CookieSecure bool   `envconfig:"COOKIE_SECURE" default:"false"`

	SMTPHost string `envconfig:"SMTP_HOST" default:""`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"SMTP_USER" default:""`
	SMTPPass string `envconfig:"SMTP_PASSWORD" default:""`
	MailFrom string `envconfig:"MAIL_FROM" default:"no-reply@spendwise.local"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes")
	}
	return &cfg, nil
}

// IsProduction returns true when the server runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}
