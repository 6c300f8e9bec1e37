// Package config manages application configuration for the Marquee API.
//
// Configuration is layered with koanf: struct defaults, then an optional YAML
// file (CONFIG_PATH or ./config.yaml), then environment variables. Only the
// variables listed in envMappings are read, so unrelated environment noise
// never leaks into the config tree.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err // every problem, joined
//	}
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS, public URL)
//   - DatabaseConfig: SurrealDB connection settings
//   - JWTConfig: HS256 signing secret and token lifetimes
//   - StorageConfig: embedded image store and upload limits
//   - PaymentsConfig, MailConfig: optional Stripe and MailerSend integrations
//   - RateLimitConfig, JobsConfig: throttling and background job intervals
package config
