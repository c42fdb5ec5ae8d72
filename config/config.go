// Package config collects every setting the server needs in one place.
//
// Values come from environment variables; a .env file in the working
// directory is loaded first for local development. Struct tags carry the
// variable names and defaults, so the struct itself is the reference for
// what can be configured.
package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/uyjoy/site/pkg/ratelimit"
)

// Config is the full server configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	PropertyAPI PropertyAPIConfig
	Telegram    TelegramConfig
	Email       EmailConfig
	Contact     ContactConfig
	Images      ImagesConfig
	Admin       AdminConfig
	Security    SecurityConfig
	CORS        CORSConfig
	Log         LogConfig

	// SiteProfilePath points at a YAML site profile. Empty = embedded default.
	SiteProfilePath string `env:"SITE_PROFILE_PATH"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host    string `env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port    int    `env:"SERVER_PORT" env-default:"8080"`
	SiteURL string `env:"SITE_URL" env-default:"http://localhost:8080"` // public origin used in canonical links
	Env     string `env:"APP_ENV" env-default:"production"`

	// TrustedProxies are the reverse proxies (CIDRs or addresses) whose
	// X-Forwarded-For / X-Real-IP headers are believed. Empty = the
	// headers are ignored and RemoteAddr is the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:","`
}

// DatabaseConfig holds the SQLite lead store settings.
type DatabaseConfig struct {
	Path string `env:"DATABASE_PATH" env-default:"./data/uyjoy.db"`
}

// PropertyAPIConfig describes the remote listing API and cache lifetimes.
type PropertyAPIConfig struct {
	BaseURL   string        `env:"PROPERTY_API_URL"`
	Timeout   time.Duration `env:"PROPERTY_API_TIMEOUT" env-default:"10s"`
	ListTTL   time.Duration `env:"PROPERTY_LIST_TTL" env-default:"60s"`
	DetailTTL time.Duration `env:"PROPERTY_DETAIL_TTL" env-default:"300s"`
	StaticTTL time.Duration `env:"PROPERTY_STATIC_TTL" env-default:"600s"` // districts, image listings
}

// TelegramConfig holds the lead relay bot. Empty token = relay disabled.
type TelegramConfig struct {
	BotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID      int64  `env:"TELEGRAM_CHAT_ID"`
	TopicID     int    `env:"TELEGRAM_TOPIC_ID"` // forum thread, 0 = none
	APIEndpoint string `env:"TELEGRAM_API_ENDPOINT" env-default:"https://api.telegram.org/bot%s/%s"`
	Locale      string `env:"TELEGRAM_LOCALE" env-default:"ru"` // language of message labels
}

// Enabled reports whether leads can be relayed to Telegram.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

// EmailConfig holds the optional lead e-mail copy via Resend.
type EmailConfig struct {
	ResendAPIKey  string `env:"RESEND_API_KEY"`
	FromEmail     string `env:"RESEND_FROM" env-default:"leads@uyjoy.uz"`
	LeadRecipient string `env:"LEAD_EMAIL_TO"`
}

// Enabled reports whether lead e-mails can be sent.
func (c EmailConfig) Enabled() bool {
	return c.ResendAPIKey != "" && c.LeadRecipient != ""
}

// ContactConfig holds contact-form limits and redelivery settings.
type ContactConfig struct {
	MaxPerWindow  int           `env:"CONTACT_MAX_PER_WINDOW" env-default:"5"`
	Window        time.Duration `env:"CONTACT_WINDOW" env-default:"10m"`
	RetryInterval time.Duration `env:"LEAD_RETRY_INTERVAL" env-default:"1m"`
	MaxAttempts   int           `env:"LEAD_MAX_ATTEMPTS" env-default:"5"`
}

// ImagesConfig holds image proxy settings.
type ImagesConfig struct {
	AllowedHosts []string `env:"IMAGE_ALLOWED_HOSTS" env-separator:","`
	MaxBytes     int64    `env:"IMAGE_MAX_BYTES" env-default:"10485760"` // 10MB
}

// AdminConfig holds the single operator login. Empty hash = admin API disabled.
type AdminConfig struct {
	PasswordHash string        `env:"ADMIN_PASSWORD_HASH"` // bcrypt
	JWTSecret    string        `env:"ADMIN_JWT_SECRET"`
	TokenTTL     time.Duration `env:"ADMIN_TOKEN_TTL" env-default:"12h"`
}

// SecurityConfig holds at-rest encryption settings.
type SecurityConfig struct {
	EncryptionKey string `env:"ENCRYPTION_KEY"` // 64 hex chars, empty = plaintext
}

// CORSConfig lists origins allowed to call /api/*.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads .env (if present) and the environment, then validates.
func Load() (*Config, error) {
	// A missing .env is fine; production uses real variables.
	_ = godotenv.Load()

	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules cleanenv cannot express and
// normalizes URLs.
func (c *Config) Validate() error {
	if c.PropertyAPI.BaseURL == "" {
		return fmt.Errorf("PROPERTY_API_URL environment variable is required")
	}
	if !isAbsoluteURL(c.PropertyAPI.BaseURL) {
		return fmt.Errorf("PROPERTY_API_URL must be an absolute http(s) URL")
	}
	if !isAbsoluteURL(c.Server.SiteURL) {
		return fmt.Errorf("SITE_URL must be an absolute http(s) URL")
	}
	c.PropertyAPI.BaseURL = strings.TrimRight(c.PropertyAPI.BaseURL, "/")
	c.Server.SiteURL = strings.TrimRight(c.Server.SiteURL, "/")

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.Admin.PasswordHash != "" && c.Admin.JWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
	}
	if k := c.Security.EncryptionKey; k != "" {
		if len(k) != 64 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters")
		}
		if _, err := hex.DecodeString(k); err != nil {
			return fmt.Errorf("ENCRYPTION_KEY must be hex: %w", err)
		}
	}
	if c.Contact.MaxPerWindow < 1 {
		return fmt.Errorf("CONTACT_MAX_PER_WINDOW must be positive")
	}
	if c.Contact.MaxAttempts < 1 {
		return fmt.Errorf("LEAD_MAX_ATTEMPTS must be positive")
	}
	// Both feed time.NewTicker / window arithmetic, which need > 0.
	if c.Contact.Window <= 0 {
		return fmt.Errorf("CONTACT_WINDOW must be positive, got %s", c.Contact.Window)
	}
	if c.Contact.RetryInterval <= 0 {
		return fmt.Errorf("LEAD_RETRY_INTERVAL must be positive, got %s", c.Contact.RetryInterval)
	}
	if _, err := ratelimit.NewIPResolver(c.Server.TrustedProxies); err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	return nil
}

// IsDevelopment reports whether APP_ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Addr returns the listen address, e.g. "0.0.0.0:8080".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIHost returns the host of the property API, which the image proxy
// always allows.
func (c *PropertyAPIConfig) APIHost() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
