package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/marquee/config.yaml",
}

// ConfigPathEnvVar names an explicit YAML config file
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Env:            "development",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"http://localhost:3000"},
			PublicBaseURL:  "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      "8000",
			Namespace: "marquee",
			Database:  "main",
			User:      "root",
			Password:  "root",
		},
		JWT: JWTConfig{
			ExpirationMins: 60,
			RefreshDays:    30,
			Issuer:         "marquee.forgo.software",
		},
		Storage: StorageConfig{
			Path:           "./data/images",
			UploadMaxBytes: 5 << 20,
		},
		Payments: PaymentsConfig{
			Currency: "usd",
		},
		Mail: MailConfig{
			FromName: "Marquee",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			AuthPerMinute:     10,
		},
		Jobs: JobsConfig{
			EventStatusInterval:  10 * time.Minute,
			TokenCleanupInterval: time.Hour,
		},
	}
}

// envMappings maps environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"server_port":          "server.port",
	"port":                 "server.port",
	"server_env":           "server.env",
	"server_read_timeout":  "server.read_timeout",
	"server_write_timeout": "server.write_timeout",
	"cors_allowed_origins": "server.allowed_origins",
	"public_base_url":      "server.public_base_url",

	"db_host":      "database.host",
	"db_port":      "database.port",
	"db_namespace": "database.namespace",
	"db_database":  "database.database",
	"db_user":      "database.user",
	"db_password":  "database.password",

	"jwt_secret":          "jwt.secret",
	"jwt_expiration_mins": "jwt.expiration_mins",
	"jwt_refresh_days":    "jwt.refresh_days",
	"jwt_issuer":          "jwt.issuer",

	"storage_path":      "storage.path",
	"storage_in_memory": "storage.in_memory",
	"upload_max_bytes":  "storage.upload_max_bytes",

	"stripe_secret_key": "payments.stripe_secret_key",
	"payment_currency":  "payments.currency",

	"mailersend_api_key": "mail.mailersend_api_key",
	"mail_from_email":    "mail.from_email",
	"mail_from_name":     "mail.from_name",

	"rate_limit_rps":          "rate_limit.rps",
	"rate_limit_burst":        "rate_limit.burst",
	"auth_rate_limit_per_min": "rate_limit.auth_per_minute",

	"jobs_event_status_interval":  "jobs.event_status_interval",
	"jobs_token_cleanup_interval": "jobs.token_cleanup_interval",
}

// sliceConfigPaths are parsed from comma-separated strings when set via env
var sliceConfigPaths = []string{
	"server.allowed_origins",
}

// Load reads configuration in layers: struct defaults, then an optional YAML
// file, then environment variables. The result is not validated; call
// Validate before use.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
