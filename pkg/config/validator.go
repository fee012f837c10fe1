package config

import "fmt"

// minBearerKeyLen is the length floor from spec §6: "bearer-signing-key
// (≥ 32 bytes, required for network transport)".
const minBearerKeyLen = 32

// Validator enforces the boot-time invariants from spec §6. A Config that
// fails validation must not be used to start a server; cmd/bridge turns a
// validation error into a non-zero exit code before anything else runs.
type Validator struct{}

// NewValidator constructs a Validator. It holds no state; the type exists
// so validation has the same shape as the rest of the pack's config
// tooling (a named type with a Validate method, not a bare function).
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the required fields and invariants named in spec §6.
// requireBearerKey should be true for the network transport (bearer
// verification is mandatory there) and false for the stream transport,
// which has no inbound Authorization header to verify.
func (*Validator) Validate(cfg *Config, requireBearerKey bool) error {
	var missing []string

	if cfg.UpstreamClientID == "" {
		missing = append(missing, "upstream-client-id")
	}
	if cfg.UpstreamClientSecret == "" {
		missing = append(missing, "upstream-client-secret")
	}
	if cfg.UpstreamRefreshToken == "" {
		missing = append(missing, "upstream-refresh-token")
	}
	if cfg.KVEndpoint == "" {
		missing = append(missing, "kv-endpoint")
	}
	if cfg.PortalID == "" {
		missing = append(missing, "portal-id")
	}
	if cfg.WebhookEnabled && cfg.WebhookSecret == "" {
		missing = append(missing, "webhook-secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %v", missing)
	}

	if requireBearerKey && len(cfg.BearerSigningKey) < minBearerKeyLen {
		return fmt.Errorf("config: bearer-signing-key must be at least %d bytes, got %d",
			minBearerKeyLen, len(cfg.BearerSigningKey))
	}

	if cfg.RateLimitCount <= 0 {
		return fmt.Errorf("config: rate-limit-count must be positive, got %d", cfg.RateLimitCount)
	}
	if cfg.RateLimitWindow <= 0 {
		return fmt.Errorf("config: rate-limit-window must be positive, got %s", cfg.RateLimitWindow)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("config: cache-ttl must be positive, got %s", cfg.CacheTTL)
	}
	if cfg.TokenSafetyMargin <= 0 {
		return fmt.Errorf("config: token-safety-margin must be positive, got %s", cfg.TokenSafetyMargin)
	}

	return nil
}
