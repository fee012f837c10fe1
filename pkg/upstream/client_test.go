package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
)

type stubTokens struct {
	token           string
	calls           atomic.Int32
	invalidateCalls atomic.Int32
}

func (s *stubTokens) Current(context.Context) (string, error) {
	s.calls.Add(1)
	return s.token, nil
}

func (s *stubTokens) Invalidate(context.Context) error {
	s.invalidateCalls.Add(1)
	return nil
}

func TestClient_Do_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(&stubTokens{token: "tok-1"}, srv.Client())
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "ok")
}

func TestClient_Do_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(&stubTokens{token: "tok-1"}, srv.Client())
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)

	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrNotFound, domainErr.Type)
	assert.False(t, domainErr.Retryable())
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_Do_ServerErrorRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(&stubTokens{token: "tok-1"}, srv.Client())
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)

	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrUpstreamUnavailable, domainErr.Type)
	assert.True(t, domainErr.Retryable())
	assert.EqualValues(t, maxAttempts, calls.Load())
}

func TestClient_Do_SucceedsAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(&stubTokens{token: "tok-1"}, srv.Client())
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_Do_UnauthorizedForcesSingleRefreshAndRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "tok-1"}
	c := New(tokens, srv.Client())
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 1, tokens.invalidateCalls.Load(), "a 401 must force exactly one Invalidate before the retry")
}

// TestClient_Do_UnauthorizedInvalidatesBeforeRetrying covers the defect a
// same-token stub masks above: even when the token source hands back the
// same (revoked-but-not-yet-expired) token on every call, the 401 path
// must still call Invalidate once before retrying, not silently resend
// the rejected token.
func TestClient_Do_UnauthorizedInvalidatesBeforeRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "tok-1"}
	c := New(tokens, srv.Client())
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.EqualValues(t, 1, tokens.invalidateCalls.Load())
}

func TestClient_Do_SecondUnauthorizedSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(&stubTokens{token: "tok-1"}, srv.Client())
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)

	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrUnauthorised, domainErr.Type)
}

func TestClient_Do_ConflictIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := New(&stubTokens{token: "tok-1"}, srv.Client())
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)

	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrConflict, domainErr.Type)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_Do_OtherClientErrorIsUpstreamRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad input"))
	}))
	defer srv.Close()

	c := New(&stubTokens{token: "tok-1"}, srv.Client())
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)

	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrUpstreamRejected, domainErr.Type)
	assert.Equal(t, http.StatusBadRequest, domainErr.Detail["upstream-status"])
}
