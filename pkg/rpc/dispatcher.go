package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zohobridge/mcp-gateway/pkg/cache"
	"github.com/zohobridge/mcp-gateway/pkg/errors"
	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/telemetry"
	"github.com/zohobridge/mcp-gateway/pkg/tools"
)

// Dispatcher implements spec §4.7's state machine: received → validated →
// dispatched → completed | failed. It owns the cache-wrap-around-handler
// decision (each Descriptor's CacheTTL), since tool handlers themselves
// never touch the cache directly.
type Dispatcher struct {
	registry *tools.Registry
	cache    *cache.Cache
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
}

// New builds a Dispatcher over registry, using cache for cacheable tool
// results per each Descriptor's CacheTTL.
func New(registry *tools.Registry, c *cache.Cache) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		cache:    c,
		tracer:   otel.Tracer("github.com/zohobridge/mcp-gateway/pkg/rpc"),
	}
}

// SetMetrics attaches m so callTool records cache hit/miss counts.
// Optional: a Dispatcher with no metrics attached skips recording.
func (d *Dispatcher) SetMetrics(m *telemetry.Metrics) {
	d.metrics = m
}

// Handle dispatches one raw JSON-RPC request and returns the raw response
// to write back, or nil if req was a notification (spec §4.7: no id, no
// response, errors only logged).
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return mustMarshal(Response{
			JSONRPC: "2.0",
			Error:   &ResponseError{Code: codeParseError, Message: "could not parse request envelope"},
		})
	}

	requestID := uuid.NewString()
	ctx, span := d.tracer.Start(ctx, "rpc."+req.Method,
		trace.WithAttributes(attribute.String("rpc.request_id", requestID)))
	defer span.End()

	result, err := d.route(ctx, req)
	if req.IsNotification() {
		if err != nil {
			logger.Errorw("notification failed", "method", req.Method, "error", err)
		}
		return nil
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return mustMarshal(Response{JSONRPC: "2.0", Error: toResponseError(err, requestID), ID: req.ID})
	}
	return mustMarshal(Response{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (d *Dispatcher) route(ctx context.Context, req Request) (any, error) {
	switch req.Method {
	case "initialize":
		return d.initialize(), nil
	case "listTools":
		return map[string]any{"tools": d.registry.Manifest()}, nil
	case "callTool":
		return d.callTool(ctx, req.Params)
	default:
		return nil, errors.New(errors.ErrInvalidParams,
			fmt.Sprintf("unknown method %q", req.Method), nil)
	}
}

func (d *Dispatcher) initialize() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"serverInfo":      map[string]any{"name": "zoho-mcp-bridge", "version": "1.0.0"},
		"capabilities":    map[string]any{"tools": map[string]any{}},
	}
}

// callTool implements spec §4.7's named-tool dispatch plus spec §4.4's
// response cache: a cache hit short-circuits the handler entirely; a miss
// runs it and, for tools with a non-zero CacheTTL, populates the cache
// from the resulting structured content.
func (d *Dispatcher) callTool(ctx context.Context, rawParams json.RawMessage) (*mcp.CallToolResult, error) {
	var params callToolParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, errors.NewInvalidParams("params", "could not parse callTool params")
	}

	descriptor, err := d.registry.Lookup(params.Name)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if descriptor.CacheTTL > 0 {
		cacheKey = cache.Key(params.Name, params.Arguments)
		if cached, ok := d.cache.Get(ctx, cacheKey); ok {
			var result mcp.CallToolResult
			if err := json.Unmarshal(cached, &result); err == nil {
				d.recordCacheOutcome(true, params.Name)
				return &result, nil
			}
			logger.Warnw("discarding unparsable cache entry", "tool", params.Name)
		}
		d.recordCacheOutcome(false, params.Name)
	}

	call := mcp.CallToolRequest{}
	call.Params.Name = params.Name
	call.Params.Arguments = params.Arguments

	result, err := descriptor.Handler(ctx, call)
	if err != nil {
		return nil, err
	}

	if descriptor.CacheTTL > 0 && !result.IsError {
		if encoded, marshalErr := json.Marshal(result); marshalErr == nil {
			if setErr := d.cache.Set(ctx, cacheKey, encoded, descriptor.CacheTTL); setErr != nil {
				logger.Warnw("failed to populate response cache", "tool", params.Name, "error", setErr)
			}
		}
	}
	return result, nil
}

func (d *Dispatcher) recordCacheOutcome(hit bool, tool string) {
	if d.metrics == nil {
		return
	}
	if hit {
		d.metrics.CacheHits.WithLabelValues(tool).Inc()
		return
	}
	d.metrics.CacheMisses.WithLabelValues(tool).Inc()
}

// NewErrorResponse builds a JSON-RPC 2.0 error envelope for err, using the
// same code/data mapping Handle applies to tool-call failures. Other
// protocol-level rejections that happen before an envelope is even parsed
// — the admission gate, spec §4.8 — use this so every error source
// reaches clients through one shape, still under HTTP 200 (spec §6:
// "Response status is always 200 except for transport-level failures;
// protocol-level errors are reported in the envelope").
func NewErrorResponse(err error) []byte {
	requestID := uuid.NewString()
	return mustMarshal(Response{JSONRPC: "2.0", Error: toResponseError(err, requestID), ID: nil})
}

// toResponseError maps a domain error (or any unclassified error) onto
// the JSON-RPC error shape, attaching spec §7's data fields when present.
func toResponseError(err error, requestID string) *ResponseError {
	domainErr, ok := errors.As(err)
	if !ok {
		return &ResponseError{Code: codeInternalError, Message: "internal error", Data: map[string]any{"request-id": requestID}}
	}

	data := map[string]any{"request-id": requestID}
	if status, ok := domainErr.Detail["upstream-status"]; ok {
		data["upstream-status"] = status
	}
	if msg, ok := domainErr.Detail["upstream-message"]; ok {
		data["upstream-message"] = msg
	}
	if retryAfter, ok := domainErr.Detail["retry-after"]; ok {
		data["retry-after"] = retryAfter
	}

	return &ResponseError{Code: codeFor(domainErr.Type), Message: domainErr.Message, Data: data}
}

func mustMarshal(resp Response) []byte {
	raw, err := json.Marshal(resp)
	if err != nil {
		// Response is always a concrete, json-safe struct; a marshal
		// failure here means a programming error, not a runtime one.
		panic(fmt.Sprintf("rpc: failed to marshal response: %v", err))
	}
	return raw
}
