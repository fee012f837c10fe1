// Package config defines the process configuration surface (spec §6) and
// loads it the way the pack's CLI applications do: a YAML file overlaid
// with environment variables via viper, validated once at boot before any
// server is started.
package config

import "time"

// Config is the fully-resolved configuration for one process. Every field
// has either a spec-mandated default or is required; Validator enforces
// the required set and the bearer key length floor named in spec §6. KV
// reachability is not checked here; the serve and stream commands check
// it separately at boot.
type Config struct {
	// Upstream OAuth credentials (spec §4.2).
	UpstreamClientID     string `mapstructure:"upstream-client-id"`
	UpstreamClientSecret string `mapstructure:"upstream-client-secret"`
	UpstreamRefreshToken string `mapstructure:"upstream-refresh-token"`

	// Admission gate (spec §4.8).
	BearerSigningKey string        `mapstructure:"bearer-signing-key"`
	MaxTokenLifetime time.Duration `mapstructure:"max-token-lifetime"`
	AllowList        []string      `mapstructure:"allow-list"`
	RateLimitCount   int           `mapstructure:"rate-limit-count"`
	RateLimitWindow  time.Duration `mapstructure:"rate-limit-window"`

	// Shared coordination store (spec §4.1).
	KVEndpoint string `mapstructure:"kv-endpoint"`

	// Response cache (spec §4.4).
	CacheTTL time.Duration `mapstructure:"cache-ttl"`

	// Token refresh safety margin (spec §4.2): a token is treated as
	// expired this long before its actual expiry, to absorb clock skew
	// and in-flight request latency.
	TokenSafetyMargin time.Duration `mapstructure:"token-safety-margin"`

	// Webhook router (spec §4.9).
	WebhookEnabled bool   `mapstructure:"webhook-enabled"`
	WebhookSecret  string `mapstructure:"webhook-secret"`

	// Upstream REST endpoints and tenant (spec §4.3).
	UpstreamProjectsBaseURL string `mapstructure:"upstream-projects-base-url"`
	UpstreamFilesBaseURL    string `mapstructure:"upstream-files-base-url"`
	PortalID                string `mapstructure:"portal-id"`

	// Network transport bind address (spec §4.10).
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Defaults returns a Config populated with every spec-mandated default.
// Loaders start from this and overlay the YAML file and environment on
// top, so an empty/minimal file still yields a working configuration for
// every field that has one.
func Defaults() *Config {
	return &Config{
		MaxTokenLifetime: 24 * time.Hour,
		AllowList:        []string{"127.0.0.1", "::1"},
		RateLimitCount:   100,
		RateLimitWindow:  60 * time.Second,
		CacheTTL:         300 * time.Second,
		TokenSafetyMargin: 300 * time.Second,
		Host:             "0.0.0.0",
		Port:             8080,
	}
}
