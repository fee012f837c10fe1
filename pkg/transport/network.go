// Package transport implements the two transport shapes of spec §4.10: a
// network transport (chi-routed HTTP: JSON-RPC endpoint, webhook
// endpoint, liveness probe, tool manifest) and a stream transport
// (newline-delimited JSON-RPC over standard input/output).
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zohobridge/mcp-gateway/pkg/admission"
	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/rpc"
	"github.com/zohobridge/mcp-gateway/pkg/tools"
	"github.com/zohobridge/mcp-gateway/pkg/webhookrouter"
)

const (
	requestTimeout    = 60 * time.Second
	readHeaderTimeout = 10 * time.Second

	// maxRPCBodyBytes bounds the whole JSON-RPC envelope, not just
	// typical calls: uploadReviewSheet's content-base64 is specified to
	// carry up to 1 GiB decoded (spec §4.6), which base64 inflates to
	// roughly 1.37 GiB on the wire plus envelope overhead. The cap must
	// clear that comfortably so oversize uploads reach tool validation
	// and come back invalid-params (spec §8 scenario 5) instead of being
	// truncated into a generic envelope-parse failure. Shared with
	// maxLineBytes in stream.go so both transports admit the same upload.
	maxRPCBodyBytes = maxUploadBodyBytes
)

// HealthReporter reports the liveness of the components the network
// transport's probe endpoint surfaces (spec §4.10: "returns component
// health"). The returned value is serialised as-is, so implementations
// own their own shape (SPEC_FULL.md §C: a top-level status plus a
// checks object keyed by component).
type HealthReporter interface {
	Health(ctx context.Context) map[string]any
}

// NetworkConfig wires a Dispatcher, a Registry (for the unauthenticated
// manifest endpoint), an admission Gate, an optional webhook Router, and
// a HealthReporter into one chi-routed server.
type NetworkConfig struct {
	Dispatcher *rpc.Dispatcher
	Registry   *tools.Registry
	Gate       *admission.Gate
	Webhook    *webhookrouter.Router // nil disables the webhook endpoint
	Health     HealthReporter
}

// NewNetworkRouter builds the chi router for the network transport.
func NewNetworkRouter(cfg NetworkConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(requestTimeout))

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Get("/tools", manifestHandler(cfg.Registry))
	r.Post("/rpc", rpcHandler(cfg.Dispatcher, cfg.Gate))
	if cfg.Webhook != nil {
		r.Post("/webhook", cfg.Webhook.ServeHTTP)
	}
	return r
}

// Serve runs the network transport on address until ctx is cancelled.
func Serve(ctx context.Context, address string, handler http.Handler) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func healthHandler(reporter HealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok"}
		if reporter != nil {
			status = reporter.Health(r.Context())
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}
}

func manifestHandler(registry *tools.Registry) http.HandlerFunc {
	manifest := map[string]any{"tools": registry.Manifest()}
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(manifest)
	}
}

// rpcHandler enforces the admission gate (spec §4.8), then hands the raw
// body to the dispatcher (spec §4.7).
func rpcHandler(dispatcher *rpc.Dispatcher, gate *admission.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := gate.Admit(r.Context(), r); err != nil {
			writeAdmissionError(w, err)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRPCBodyBytes))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		resp := dispatcher.Handle(r.Context(), body)
		w.Header().Set("Content-Type", "application/json")
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if _, err := w.Write(resp); err != nil {
			logger.Warnw("failed writing rpc response", "error", err)
		}
	}
}

// writeAdmissionError reports an admission-gate rejection (spec §4.8) the
// same way the dispatcher reports any other protocol-level error (spec
// §6): HTTP 200, with the failure in the JSON-RPC envelope. Unauthorised,
// forbidden, and rate-limited are entries in the same error taxonomy as
// upstream/validation failures (spec §7), not transport-level faults, so
// they get the same status treatment.
func writeAdmissionError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write(rpc.NewErrorResponse(err)); writeErr != nil {
		logger.Warnw("failed writing admission error response", "error", writeErr)
	}
}
