// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every operator-tunable setting of the server.
type Config struct {
	Addr        string `env:"HAVEN_ADDR"         envDefault:":8080"`
	PublicURL   string `env:"HAVEN_PUBLIC_URL"   envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"       envDefault:"haven.db"`
	StorageDir  string `env:"HAVEN_STORAGE_DIR"  envDefault:"data/storage"`

	// JWTSecret signs anon and service_role API keys.
	JWTSecret string `env:"HAVEN_JWT_SECRET"`

	CompletionURL   string `env:"HAVEN_COMPLETION_URL"   envDefault:"https://api.openai.com/v1/chat/completions"`
	CompletionModel string `env:"HAVEN_COMPLETION_MODEL" envDefault:"gpt-3.5-turbo"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	MailFrom     string `env:"HAVEN_MAIL_FROM" envDefault:"Mindful Heaven <onboarding@resend.dev>"`

	SessionLifetime time.Duration `env:"HAVEN_SESSION_LIFETIME" envDefault:"24h"`
	CookieSecure    bool          `env:"HAVEN_COOKIE_SECURE"    envDefault:"false"`
	BcryptCost      int           `env:"HAVEN_BCRYPT_COST"      envDefault:"12"`

	AllowedOrigins []string `env:"HAVEN_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimit      float64  `env:"HAVEN_RATE_LIMIT"      envDefault:"2"`
	RateBurst      int      `env:"HAVEN_RATE_BURST"      envDefault:"20"`

	ResetCodeTTL    time.Duration `env:"HAVEN_RESET_CODE_TTL"    envDefault:"10m"`
	JanitorInterval time.Duration `env:"HAVEN_JANITOR_INTERVAL"  envDefault:"1h"`

	OTelEndpoint string `env:"HAVEN_OTEL_ENDPOINT"`
}

// Load parses the environment into a validated Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("HAVEN_JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("HAVEN_JWT_SECRET must be at least 32 characters")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("HAVEN_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.SessionLifetime <= 0 {
		return errors.New("HAVEN_SESSION_LIFETIME must be positive")
	}
	if c.ResetCodeTTL <= 0 {
		return errors.New("HAVEN_RESET_CODE_TTL must be positive")
	}
	if c.JanitorInterval <= 0 {
		return errors.New("HAVEN_JANITOR_INTERVAL must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("HAVEN_RATE_LIMIT and HAVEN_RATE_BURST must be positive")
	}
	return nil
}

// CompletionAPIKey returns the first configured upstream key.
func (c Config) CompletionAPIKey() string {
	if key := strings.TrimSpace(c.OpenAIAPIKey); key != "" {
		return key
	}
	return strings.TrimSpace(c.AnthropicAPIKey)
}

// UsesPostgres reports whether DatabaseURL points at a Postgres server.
func (c Config) UsesPostgres() bool {
	u := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") ||
		strings.Contains(u, "host=")
}
