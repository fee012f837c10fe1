// Package cache implements the Response Cache (spec §4.4): a read-through
// cache over pkg/kv keyed on a stable hash of tool name plus canonicalised
// parameters. Mutating tools bypass it entirely, errors are never cached,
// and there is no write-invalidation path — callers tolerate up to one
// cache-TTL of staleness, per the Open Question decision in DESIGN.md.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/zohobridge/mcp-gateway/pkg/kv"
)

const keyPrefix = "cache:"

// Cache wraps a kv.Store to cache tool results. Each tool declares its
// own TTL (spec §4.5's per-tool column), which callers pass to Set.
// DefaultTTL records the configured cache-ttl (spec §6, default 300s);
// no method of Cache reads it.
type Cache struct {
	store      kv.Store
	DefaultTTL time.Duration
}

// New constructs a Cache with the given store and default TTL.
func New(store kv.Store, defaultTTL time.Duration) *Cache {
	return &Cache{store: store, DefaultTTL: defaultTTL}
}

// Key returns the stable cache key for a tool invocation: the tool name
// followed by a SHA-256 hash of the parameters, serialised with sorted
// keys so that semantically identical calls always hash identically
// regardless of the order fields arrived in (spec §8's cache invariant).
func Key(toolName string, params map[string]any) string {
	canonical, err := canonicalJSON(params)
	if err != nil {
		// Parameters that fail to serialise can't be cached meaningfully;
		// fall back to a key that will simply never collide with a valid
		// entry, forcing a miss rather than a false hit.
		canonical = []byte(toolName)
	}
	sum := sha256.Sum256(canonical)
	return keyPrefix + toolName + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached result for key, and whether it was present.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Set stores result under key with the given TTL. result must be a
// successful tool result; callers must never pass an error response
// (spec §8: "no caching of errors"). A zero ttl means the result is not
// cached at all (e.g. downloadFile, whose pre-signed URL already carries
// its own short expiry).
func (c *Cache) Set(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.store.Set(ctx, key, result, ttl)
}

// canonicalJSON serialises v with map keys in sorted order so the same
// logical parameter set always produces identical bytes.
func canonicalJSON(v map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]keyValue, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, keyValue{Key: k, Value: v[k]})
	}
	return json.Marshal(ordered)
}

type keyValue struct {
	Key   string `json:"k"`
	Value any    `json:"v"`
}
