// Package kv abstracts the remote key-value service that backs every
// piece of cross-replica coordination in the system: the shared access
// credential and its refresh lock (pkg/oauthmgr), the response cache
// (pkg/cache), rate-limit counters (pkg/admission), the createTask
// idempotency marker, and webhook replay suppression (pkg/webhookrouter).
//
// The facade is the sole serialisation point for cross-replica
// coordination (spec §4.1): it must preserve atomic create-if-absent
// semantics so that a refresh lock, or an idempotency marker, can never
// be granted to two callers at once.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key does not exist. It is distinct
// from a transient connectivity error so callers can tell "nothing there"
// from "couldn't find out".
var ErrMiss = errors.New("kv: key miss")

// ErrNotAcquired is returned by CreateIfAbsent when the key already
// exists, i.e. the lock/marker is held by someone else.
var ErrNotAcquired = errors.New("kv: create-if-absent: already exists")

// Store is the facade's public interface. All operations may fail with a
// transient connectivity error distinct from ErrMiss/ErrNotAcquired.
type Store interface {
	// Get returns the value stored at key, or ErrMiss if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given TTL. A zero TTL means no
	// expiry (used sparingly; almost everything in this system is
	// TTL-bounded by design, per spec §3).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// CreateIfAbsent atomically creates key=value with the given TTL only
	// if key does not already exist. Returns ErrNotAcquired if it does.
	// This is the sole primitive behind single-flight refresh (§4.2) and
	// idempotent writes (§4.6).
	CreateIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// IncrementWithTTL atomically increments the counter at key by one,
	// setting ttl on the key only if this increment created it (i.e. the
	// counter's window only starts ticking on first use). Returns the
	// post-increment value. Backs the rate-limit bucket (§4.8, §9).
	IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
