package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zohobridge/mcp-gateway/pkg/config"
	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/telemetry"
	"github.com/zohobridge/mcp-gateway/pkg/transport"
)

const metricsAddrSuffix = 1 // metrics listens on the same host, port+1

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the network transport: JSON-RPC, webhook, health, and manifest endpoints over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.NewValidator().Validate(cfg, true); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	comps, err := buildComponents(cfg)
	if err != nil {
		return fmt.Errorf("building components: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// spec §6: the process must exit non-zero on an unrecoverable startup
	// error, including a KV store that's unreachable at boot — otherwise
	// the rate-limiter and webhook dedup's fail-open behavior would mask
	// the outage behind an apparently healthy server.
	if err := checkKVReachable(ctx, comps.store); err != nil {
		return fmt.Errorf("kv store unreachable at boot: %w", err)
	}

	handler := transport.NewNetworkRouter(transport.NetworkConfig{
		Dispatcher: comps.dispatcher,
		Registry:   comps.registry,
		Gate:       comps.gate,
		Webhook:    comps.webhook,
		Health:     comps.health,
	})

	metricsAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port+metricsAddrSuffix)
	go serveMetrics(ctx, metricsAddr, comps.metricsGatherer)

	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Infow("starting network transport", "address", address, "metrics-address", metricsAddr)
	return transport.Serve(ctx, address, handler)
}

func serveMetrics(ctx context.Context, address string, gatherer prometheus.Gatherer) {
	srv := &http.Server{Addr: address, Handler: telemetry.Handler(gatherer), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warnf("metrics server stopped: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.NewYAMLLoader(path).Load()
}
