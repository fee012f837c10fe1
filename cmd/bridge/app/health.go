package app

import (
	"context"
	"net/http"
	"time"

	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/oauthmgr"
)

const (
	healthKVKey           = "healthz:probe"
	healthKVTTL           = 30 * time.Second
	healthUpstreamTimeout = 3 * time.Second
)

// bridgeHealth implements transport.HealthReporter per spec §4.10 and
// SPEC_FULL.md §C: checks.kv performs a real KV round-trip rather than a
// bare ping, checks.upstream-token reports whether a cached credential is
// present without forcing a refresh, and checks.upstream-api is a
// lightweight reachability probe on its own short timeout, distinct from
// the per-call 10s upstream budget, so a slow upstream degrades the
// report instead of hanging it.
type bridgeHealth struct {
	store       kv.Store
	tokens      *oauthmgr.Manager
	probeURL    string
	probeClient *http.Client
}

func newBridgeHealth(store kv.Store, tokens *oauthmgr.Manager, probeURL string) *bridgeHealth {
	return &bridgeHealth{
		store:       store,
		tokens:      tokens,
		probeURL:    probeURL,
		probeClient: &http.Client{Timeout: healthUpstreamTimeout},
	}
}

func (h *bridgeHealth) Health(ctx context.Context) map[string]any {
	checks := map[string]string{
		"kv":             h.checkKV(ctx),
		"upstream-token": h.checkUpstreamToken(ctx),
		"upstream-api":   h.checkUpstreamAPI(ctx),
	}

	status := "ok"
	for _, v := range checks {
		if v != "ok" {
			status = "degraded"
			break
		}
	}

	return map[string]any{"status": status, "checks": checks}
}

func (h *bridgeHealth) checkKV(ctx context.Context) string {
	if err := h.store.Set(ctx, healthKVKey, []byte("1"), healthKVTTL); err != nil {
		return "error: " + err.Error()
	}
	if _, err := h.store.Get(ctx, healthKVKey); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func (h *bridgeHealth) checkUpstreamToken(ctx context.Context) string {
	if h.tokens.HasCurrentToken(ctx) {
		return "ok"
	}
	return "no cached credential"
}

func (h *bridgeHealth) checkUpstreamAPI(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, healthUpstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, h.probeURL, nil)
	if err != nil {
		return "error: " + err.Error()
	}
	resp, err := h.probeClient.Do(req)
	if err != nil {
		return "error: " + err.Error()
	}
	defer resp.Body.Close()
	return "ok"
}

// checkKVReachable is the boot-time gate spec §6 requires: the process
// must exit non-zero rather than start serving when its coordination
// store is unreachable, since the fail-open rate-limit and dedup paths
// would otherwise make a down KV store invisible to an operator.
func checkKVReachable(ctx context.Context, store kv.Store) error {
	ctx, cancel := context.WithTimeout(ctx, healthUpstreamTimeout)
	defer cancel()
	if err := store.Set(ctx, healthKVKey, []byte("1"), healthKVTTL); err != nil {
		return err
	}
	return nil
}
