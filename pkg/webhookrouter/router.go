// Package webhookrouter implements the Webhook Router (spec §4.9):
// verifies upstream-originated event deliveries by HMAC, rejects replays
// and stale timestamps, and dispatches accepted events to registered
// handlers.
package webhookrouter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/logger"
)

const (
	signatureHeader = "X-Zoho-Signature"
	timestampHeader = "X-Zoho-Timestamp"

	timestampSkew = 5 * time.Minute
	dedupWindow   = 5 * time.Minute
	dedupPrefix   = "webhook:delivery:"
)

// Event is one parsed delivery.
type Event struct {
	DeliveryID string          `json:"delivery-id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

// HandlerFunc processes one accepted Event. A returned error is logged
// and still answers 200 to the upstream (spec §4.9): only a framework-level
// fault (no handler registered for the event type, a handler panic)
// answers 500. A malformed envelope answers 400 before dispatch.
type HandlerFunc func(ctx context.Context, event Event) error

// Router verifies and dispatches webhook deliveries.
type Router struct {
	secret   []byte
	store    kv.Store
	handlers map[string]HandlerFunc
}

// New builds a Router verifying deliveries with secret and deduplicating
// replays through store.
func New(secret []byte, store kv.Store) *Router {
	return &Router{secret: secret, store: store, handlers: make(map[string]HandlerFunc)}
}

// RegisterHandler binds a HandlerFunc to eventType.
func (r *Router) RegisterHandler(eventType string, h HandlerFunc) {
	r.handlers[eventType] = h
}

// ServeHTTP implements the webhook endpoint (spec §4.10).
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !r.verifySignature(body, req.Header.Get(signatureHeader)) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if ts := req.Header.Get(timestampHeader); ts != "" && !withinSkew(ts) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil || event.DeliveryID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	fresh, err := r.claimDelivery(req.Context(), event.DeliveryID)
	if err != nil {
		logger.Warnw("webhook dedup store unavailable, processing delivery without replay protection",
			"delivery-id", event.DeliveryID, "error", err)
	} else if !fresh {
		w.WriteHeader(http.StatusOK) // replay: already handled, ack without reprocessing
		return
	}

	handler, ok := r.handlers[event.Type]
	if !ok {
		logger.Errorw("no handler registered for webhook event type", "type", event.Type)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("webhook handler panicked", "delivery-id", event.DeliveryID, "type", event.Type, "panic", rec)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}()
	if err := handler(req.Context(), event); err != nil {
		logger.Errorw("webhook handler failed", "delivery-id", event.DeliveryID, "type", event.Type, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (r *Router) verifySignature(body []byte, provided string) bool {
	if provided == "" {
		return false
	}
	mac := hmac.New(sha256.New, r.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}

func withinSkew(raw string) bool {
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	delta := time.Since(time.Unix(seconds, 0))
	if delta < 0 {
		delta = -delta
	}
	return delta <= timestampSkew
}

// claimDelivery reports whether this is the first time deliveryID has
// been seen within the dedup window, using create-if-absent so
// concurrent redeliveries can't both be treated as fresh.
func (r *Router) claimDelivery(ctx context.Context, deliveryID string) (bool, error) {
	err := r.store.CreateIfAbsent(ctx, dedupPrefix+deliveryID, []byte("1"), dedupWindow)
	switch err {
	case nil:
		return true, nil
	case kv.ErrNotAcquired:
		return false, nil
	default:
		return false, err
	}
}
