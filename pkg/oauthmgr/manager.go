// Package oauthmgr implements the OAuth Token Manager (spec §4.2): a
// single current() accessor that hands back a valid upstream access
// credential, refreshing it through the upstream identity provider when
// it is within its safety margin of expiry. Refresh coordination happens
// through the shared kv.Store so that concurrent replicas issue at most
// one upstream refresh call per refresh-timeout window (spec §8).
package oauthmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/telemetry"
)

const (
	tokenKey = "oauth:access-token"
	lockKey  = "oauth:refresh-lock"

	// refreshTimeout bounds how long a refresh lock is held, and so how
	// long a waiting caller polls before giving up (spec §4.2 default).
	refreshTimeout = 30 * time.Second

	pollMinBackoff = 50 * time.Millisecond
	pollMaxBackoff = 500 * time.Millisecond

	// minCacheTTL floors the published token's KV TTL (spec §3/§4.2).
	minCacheTTL = 60 * time.Second
)

// cachedToken is the JSON shape stored in KV under tokenKey, shared by
// every replica holding a reference to the same upstream credential.
type cachedToken struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// Manager is the Token Manager described in spec §4.2. It is safe for
// concurrent use by multiple goroutines within one process; cross-process
// coordination is delegated to the KV store.
type Manager struct {
	store        kv.Store
	oauthConfig  *oauth2.Config
	refreshToken string
	safetyMargin time.Duration
	holderID     string
	metrics      *telemetry.Metrics
}

// SetMetrics attaches m so refresh records outcome counts. Optional: a
// Manager with no metrics attached skips recording.
func (m *Manager) SetMetrics(metrics *telemetry.Metrics) {
	m.metrics = metrics
}

// Config carries the upstream OAuth client configuration (spec §6:
// upstream-client-id, upstream-client-secret, upstream-refresh-token) and
// the token endpoint to refresh against.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RefreshToken string
	SafetyMargin time.Duration
}

// New constructs a Manager backed by store for coordination.
func New(store kv.Store, cfg Config) *Manager {
	return &Manager{
		store: store,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		refreshToken: cfg.RefreshToken,
		safetyMargin: cfg.SafetyMargin,
		holderID:     uuid.NewString(),
	}
}

// Current returns a valid access token, refreshing it if it is within its
// safety margin of expiry. At most one upstream refresh call is issued
// per refresh-timeout window across every replica sharing the KV store
// (spec §8's single-flight invariant).
func (m *Manager) Current(ctx context.Context) (string, error) {
	if tok, ok, err := m.readCached(ctx); err != nil {
		return "", err
	} else if ok {
		return tok.AccessToken, nil
	}

	acquired, err := m.tryAcquireLock(ctx)
	if err != nil {
		return "", err
	}
	if acquired {
		defer func() {
			if err := m.store.Delete(ctx, lockKey); err != nil {
				logger.Warnf("oauthmgr: failed to release refresh lock: %v", err)
			}
		}()
		return m.refresh(ctx)
	}

	return m.waitForRefresh(ctx)
}

// Invalidate discards the cached token so the next Current call forces an
// upstream refresh even though the cached token has not yet reached its
// safety margin of expiry. Callers use this when upstream rejects the
// cached token outright (401) rather than merely having let it age past
// its safety margin (spec §4.3, §8: "Upstream 401 causes exactly one
// refresh and one retry").
func (m *Manager) Invalidate(ctx context.Context) error {
	if err := m.store.Delete(ctx, tokenKey); err != nil {
		return errors.NewCredentialUnavailable("invalidating cached token", err)
	}
	return nil
}

// HasCurrentToken reports whether a cached access token is present and
// still outside its safety margin, without forcing a refresh. Used by the
// health endpoint's upstream-token check (spec §4.10, SPEC_FULL.md §C).
func (m *Manager) HasCurrentToken(ctx context.Context) bool {
	_, ok, err := m.readCached(ctx)
	return err == nil && ok
}

// readCached returns the cached token if present and outside its safety
// margin of expiry.
func (m *Manager) readCached(ctx context.Context) (cachedToken, bool, error) {
	raw, err := m.store.Get(ctx, tokenKey)
	if err != nil {
		if err == kv.ErrMiss {
			return cachedToken{}, false, nil
		}
		return cachedToken{}, false, errors.NewCredentialUnavailable("reading cached token", err)
	}
	var tok cachedToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return cachedToken{}, false, errors.NewCredentialUnavailable("decoding cached token", err)
	}
	if time.Now().Add(m.safetyMargin).Before(tok.Expiry) {
		return tok, true, nil
	}
	return cachedToken{}, false, nil
}

func (m *Manager) tryAcquireLock(ctx context.Context) (bool, error) {
	err := m.store.CreateIfAbsent(ctx, lockKey, []byte(m.holderID), refreshTimeout)
	if err == nil {
		return true, nil
	}
	if err == kv.ErrNotAcquired {
		return false, nil
	}
	return false, errors.NewCredentialUnavailable("acquiring refresh lock", err)
}

// refresh performs the upstream refresh-token exchange and publishes the
// result to KV for any other replica that is polling.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	src := m.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: m.refreshToken})
	tok, err := src.Token()
	if err != nil {
		m.recordRefresh("error")
		return "", errors.NewCredentialUnavailable("upstream token refresh failed", err)
	}
	if tok.AccessToken == "" {
		m.recordRefresh("error")
		return "", errors.NewCredentialUnavailable("upstream token refresh returned an empty access token", nil)
	}
	m.recordRefresh("success")

	cached := cachedToken{AccessToken: tok.AccessToken, Expiry: tok.Expiry}
	raw, err := json.Marshal(cached)
	if err != nil {
		return "", errors.NewInternal("encoding refreshed token", err)
	}

	// The cached entry's TTL matches readCached's own freshness test
	// (expiry minus safety margin), floored so a tight margin or an
	// already-near-expiry token still leaves the entry visible to other
	// replicas for a moment rather than vanishing immediately.
	ttl := time.Until(tok.Expiry) - m.safetyMargin
	if ttl < minCacheTTL {
		ttl = minCacheTTL
	}
	if err := m.store.Set(ctx, tokenKey, raw, ttl); err != nil {
		logger.Warnf("oauthmgr: failed to publish refreshed token to kv: %v", err)
	}

	return tok.AccessToken, nil
}

// waitForRefresh polls KV for the token another replica is refreshing,
// with jittered backoff, until refreshTimeout elapses.
func (m *Manager) waitForRefresh(ctx context.Context) (string, error) {
	deadline := time.Now().Add(refreshTimeout)
	backoff := pollMinBackoff

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", errors.NewTimeout("waiting for concurrent token refresh")
		case <-time.After(jitter(backoff)):
		}

		if tok, ok, err := m.readCached(ctx); err != nil {
			return "", err
		} else if ok {
			return tok.AccessToken, nil
		}

		backoff *= 2
		if backoff > pollMaxBackoff {
			backoff = pollMaxBackoff
		}
	}

	return "", errors.NewCredentialUnavailable(
		fmt.Sprintf("no refreshed token observed within %s", refreshTimeout), nil)
}

func (m *Manager) recordRefresh(outcome string) {
	if m.metrics != nil {
		m.metrics.TokenRefreshes.WithLabelValues(outcome).Inc()
	}
}

// jitter returns d scaled by a random factor in [0.8, 1.2], matching the
// ±20% jitter used for upstream retry backoff (spec §4.3).
func jitter(d time.Duration) time.Duration {
	factor := 0.8 + rand.Float64()*0.4 //nolint:gosec // jitter does not need cryptographic randomness
	return time.Duration(float64(d) * factor)
}
