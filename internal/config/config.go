package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	JWT       JWTConfig       `koanf:"jwt"`
	Storage   StorageConfig   `koanf:"storage"`
	Payments  PaymentsConfig  `koanf:"payments"`
	Mail      MailConfig      `koanf:"mail"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Jobs      JobsConfig      `koanf:"jobs"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string        `koanf:"port"`
	Env            string        `koanf:"env"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	PublicBaseURL  string        `koanf:"public_base_url"`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string `koanf:"host"`
	Port      string `koanf:"port"`
	Namespace string `koanf:"namespace"`
	Database  string `koanf:"database"`
	User      string `koanf:"user"`
	Password  string `koanf:"password"`
}

// JWTConfig holds token signing settings
type JWTConfig struct {
	Secret         string `koanf:"secret"`
	ExpirationMins int    `koanf:"expiration_mins"`
	RefreshDays    int    `koanf:"refresh_days"`
	Issuer         string `koanf:"issuer"`
}

// StorageConfig holds the embedded image store settings
type StorageConfig struct {
	Path           string `koanf:"path"`
	InMemory       bool   `koanf:"in_memory"`
	UploadMaxBytes int64  `koanf:"upload_max_bytes"`
}

// PaymentsConfig holds payment processor settings.
// Without a Stripe key, purchases get locally generated transaction ids.
type PaymentsConfig struct {
	StripeSecretKey string `koanf:"stripe_secret_key"`
	Currency        string `koanf:"currency"`
}

// MailConfig holds transactional email settings.
// Without an API key, emails are logged instead of sent.
type MailConfig struct {
	MailerSendAPIKey string `koanf:"mailersend_api_key"`
	FromEmail        string `koanf:"from_email"`
	FromName         string `koanf:"from_name"`
}

// RateLimitConfig holds request throttling settings
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"rps"`
	Burst             int     `koanf:"burst"`
	AuthPerMinute     int     `koanf:"auth_per_minute"`
}

// JobsConfig holds background job intervals
type JobsConfig struct {
	EventStatusInterval  time.Duration `koanf:"event_status_interval"`
	TokenCleanupInterval time.Duration `koanf:"token_cleanup_interval"`
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// PaymentsEnabled reports whether a real payment processor is configured
func (c *Config) PaymentsEnabled() bool {
	return c.Payments.StripeSecretKey != ""
}

// MailEnabled reports whether outbound email is configured
func (c *Config) MailEnabled() bool {
	return c.Mail.MailerSendAPIKey != ""
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}
	if c.Server.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	// JWT validation
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
	}
	if c.JWT.ExpirationMins <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINS must be positive"))
	}
	if c.JWT.RefreshDays <= 0 {
		errs = append(errs, errors.New("JWT_REFRESH_DAYS must be positive"))
	}

	// Storage validation
	if !c.Storage.InMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("STORAGE_PATH is required unless STORAGE_IN_MEMORY is true"))
	}
	if c.Storage.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}

	// Mail validation
	if c.MailEnabled() && c.Mail.FromEmail == "" {
		errs = append(errs, errors.New("MAIL_FROM_EMAIL is required when MAILERSEND_API_KEY is set"))
	}

	// Rate limit validation
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.RateLimit.AuthPerMinute <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT_PER_MIN must be positive"))
	}

	// Job validation
	if c.Jobs.EventStatusInterval <= 0 || c.Jobs.TokenCleanupInterval <= 0 {
		errs = append(errs, errors.New("job intervals must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
