package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/zohobridge/mcp-gateway/pkg/admission"
	"github.com/zohobridge/mcp-gateway/pkg/cache"
	"github.com/zohobridge/mcp-gateway/pkg/config"
	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/oauthmgr"
	"github.com/zohobridge/mcp-gateway/pkg/rpc"
	"github.com/zohobridge/mcp-gateway/pkg/telemetry"
	"github.com/zohobridge/mcp-gateway/pkg/tools"
	"github.com/zohobridge/mcp-gateway/pkg/upstream"
	"github.com/zohobridge/mcp-gateway/pkg/webhookrouter"
)

// components bundles every part the serve/stream commands need, built
// from one resolved Config and sharing one kv.Store and one metrics
// registry.
type components struct {
	store           kv.Store
	dispatcher      *rpc.Dispatcher
	registry        *tools.Registry
	gate            *admission.Gate
	webhook         *webhookrouter.Router
	metrics         *telemetry.Metrics
	metricsGatherer prometheus.Gatherer
	health          *bridgeHealth
}

// buildComponents wires the bridge's packages together per SPEC_FULL.md's
// dependency graph: kv.Store first (everything downstream coordinates
// through it), then the OAuth token manager and upstream client, then the
// tool handlers and registry, then the dispatcher, admission gate, and
// webhook router on top.
func buildComponents(cfg *config.Config) (*components, error) {
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.KVEndpoint})
	store := kv.NewRedisStore(redisClient)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	tokenMgr := oauthmgr.New(store, oauthmgr.Config{
		ClientID:     cfg.UpstreamClientID,
		ClientSecret: cfg.UpstreamClientSecret,
		TokenURL:     zohoTokenURL,
		RefreshToken: cfg.UpstreamRefreshToken,
		SafetyMargin: cfg.TokenSafetyMargin,
	})
	tokenMgr.SetMetrics(metrics)

	upstreamClient := upstream.New(tokenMgr, nil)
	upstreamClient.SetMetrics(metrics)

	responseCache := cache.New(store, cfg.CacheTTL)

	handlers := tools.NewHandlers(tools.Deps{
		Upstream:        upstreamClient,
		Cache:           responseCache,
		KV:              store,
		ProjectsBaseURL: cfg.UpstreamProjectsBaseURL,
		FilesBaseURL:    cfg.UpstreamFilesBaseURL,
		PortalID:        cfg.PortalID,
	})

	registry, err := tools.NewRegistry(handlers.Descriptors()...)
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	dispatcher := rpc.New(registry, responseCache)
	dispatcher.SetMetrics(metrics)

	allowList, err := admission.NewAllowList(cfg.AllowList, false)
	if err != nil {
		return nil, fmt.Errorf("building allow-list: %w", err)
	}
	rateLimiter := admission.NewRateLimiter(store, cfg.RateLimitCount, cfg.RateLimitWindow)
	rateLimiter.SetMetrics(metrics)
	gate := admission.New(
		admission.NewBearerVerifier([]byte(cfg.BearerSigningKey), cfg.MaxTokenLifetime),
		allowList,
		rateLimiter,
	)

	var webhook *webhookrouter.Router
	if cfg.WebhookEnabled {
		webhook = webhookrouter.New([]byte(cfg.WebhookSecret), store)
		registerWebhookHandlers(webhook)
	}

	return &components{
		store:           store,
		dispatcher:      dispatcher,
		registry:        registry,
		gate:            gate,
		webhook:         webhook,
		metrics:         metrics,
		metricsGatherer: reg,
		health:          newBridgeHealth(store, tokenMgr, cfg.UpstreamProjectsBaseURL),
	}, nil
}

// zohoTokenURL is Zoho's account-server OAuth token endpoint (spec §4.2).
const zohoTokenURL = "https://accounts.zoho.com/oauth/v2/token"
