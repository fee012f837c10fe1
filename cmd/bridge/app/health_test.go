package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/oauthmgr"
)

func newTestHealth(t *testing.T, probeURL string) (*bridgeHealth, kv.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := kv.NewRedisStore(client)

	tokens := oauthmgr.New(store, oauthmgr.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     "http://unused.invalid",
		RefreshToken: "refresh",
		SafetyMargin: 5 * time.Second,
	})
	return newBridgeHealth(store, tokens, probeURL), store
}

func TestBridgeHealth_AllChecksOkWhenUpstreamReachableAndTokenCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	health, store := newTestHealth(t, srv.URL)
	require.NoError(t, store.Set(context.Background(), "oauth:access-token",
		[]byte(`{"access_token":"at-1","expiry":"`+time.Now().Add(time.Hour).Format(time.RFC3339)+`"}`), time.Hour))

	result := health.Health(context.Background())
	assert.Equal(t, "ok", result["status"])
	checks, ok := result["checks"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "ok", checks["kv"])
	assert.Equal(t, "ok", checks["upstream-token"])
	assert.Equal(t, "ok", checks["upstream-api"])
}

func TestBridgeHealth_DegradedWhenNoCachedTokenOrUpstreamUnreachable(t *testing.T) {
	health, _ := newTestHealth(t, "http://127.0.0.1:1")

	result := health.Health(context.Background())
	assert.Equal(t, "degraded", result["status"])
	checks, ok := result["checks"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "ok", checks["kv"])
	assert.NotEqual(t, "ok", checks["upstream-token"])
	assert.NotEqual(t, "ok", checks["upstream-api"])
}
