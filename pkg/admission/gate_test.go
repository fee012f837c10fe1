package admission

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
	"github.com/zohobridge/mcp-gateway/pkg/kv"
)

func newTestGate(t *testing.T, allowed []string, testProfile bool, rateCount int) *Gate {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := kv.NewRedisStore(client)

	allowList, err := NewAllowList(allowed, testProfile)
	require.NoError(t, err)

	return New(
		NewBearerVerifier(testSigningKey, 24*time.Hour),
		allowList,
		NewRateLimiter(store, rateCount, time.Minute),
	)
}

func requestWithBearer(t *testing.T, remoteAddr string) *http.Request {
	t.Helper()
	now := time.Now()
	token := signToken(t, testSigningKey, jwt.MapClaims{
		"sub": "principal-1",
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(time.Hour)),
	})
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.RemoteAddr = remoteAddr
	return req
}

func TestGate_Admit_Success(t *testing.T) {
	g := newTestGate(t, []string{"127.0.0.1"}, false, 10)
	principal, err := g.Admit(t.Context(), requestWithBearer(t, "127.0.0.1:5555"))
	require.NoError(t, err)
	assert.Equal(t, "principal-1", principal)
}

func TestGate_Admit_BearerFailsBeforeAllowList(t *testing.T) {
	g := newTestGate(t, []string{"10.0.0.0/8"}, false, 10)
	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.RemoteAddr = "192.168.1.1:5555" // would also fail the allow-list

	_, err := g.Admit(t.Context(), req)
	require.Error(t, err)
	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrUnauthorised, domainErr.Type, "bearer check must run first")
}

func TestGate_Admit_ForbiddenAddress(t *testing.T) {
	g := newTestGate(t, []string{"10.0.0.0/8"}, false, 10)
	_, err := g.Admit(t.Context(), requestWithBearer(t, "192.168.1.1:5555"))
	require.Error(t, err)
	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrForbidden, domainErr.Type)
}

func TestGate_Admit_RateLimited(t *testing.T) {
	g := newTestGate(t, []string{"127.0.0.1"}, false, 1)
	ctx := t.Context()
	_, err := g.Admit(ctx, requestWithBearer(t, "127.0.0.1:5555"))
	require.NoError(t, err)

	_, err = g.Admit(ctx, requestWithBearer(t, "127.0.0.1:5555"))
	require.Error(t, err)
	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrRateLimited, domainErr.Type)
}
