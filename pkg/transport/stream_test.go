package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zohobridge/mcp-gateway/pkg/cache"
	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/rpc"
	"github.com/zohobridge/mcp-gateway/pkg/tools"
)

func newTestStreamDispatcher(t *testing.T) *rpc.Dispatcher {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := kv.NewRedisStore(client)

	registry, err := tools.NewRegistry(tools.Descriptor{
		Tool: mcp.Tool{Name: "echo"},
		Handler: func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultStructuredOnly(map[string]any{"arguments": req.Params.Arguments}), nil
		},
	})
	require.NoError(t, err)

	return rpc.New(registry, cache.New(store, time.Minute))
}

// readLines drains reader into a slice of non-empty lines, waiting until
// exactly want lines have arrived or the timeout elapses.
func readLines(t *testing.T, r io.Reader, want int, timeout time.Duration) []string {
	t.Helper()
	lines := make(chan string, want)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				lines <- line
			}
		}
	}()

	var got []string
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case l := <-lines:
			got = append(got, l)
		case <-deadline:
			t.Fatalf("timed out waiting for %d lines, got %d: %v", want, len(got), got)
		}
	}
	return got
}

func TestStreamTransport_RespondsToRequest(t *testing.T) {
	dispatcher := newTestStreamDispatcher(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"initialize","id":1}` + "\n")
	var out bytes.Buffer
	st := NewStreamTransport(in, &out, dispatcher)

	require.NoError(t, st.Run(context.Background()))

	var resp rpc.Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	assert.Nil(t, resp.Error)
}

func TestStreamTransport_NotificationProducesNoOutput(t *testing.T) {
	dispatcher := newTestStreamDispatcher(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"initialize"}` + "\n")
	var out bytes.Buffer
	st := NewStreamTransport(in, &out, dispatcher)

	require.NoError(t, st.Run(context.Background()))
	assert.Empty(t, strings.TrimSpace(out.String()), "notifications must not produce a response line")
}

func TestStreamTransport_MalformedLineGetsParseError(t *testing.T) {
	dispatcher := newTestStreamDispatcher(t)
	in := strings.NewReader("not json at all\n")
	var out bytes.Buffer
	st := NewStreamTransport(in, &out, dispatcher)

	require.NoError(t, st.Run(context.Background()))

	var resp rpc.Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32700, resp.Error.Code)
}

func TestStreamTransport_CorrelatesConcurrentRequestsByID(t *testing.T) {
	dispatcher := newTestStreamDispatcher(t)
	pr, pw := io.Pipe()
	var out bytes.Buffer
	var outMu sync.Mutex
	st := NewStreamTransport(pr, writerFunc(func(p []byte) (int, error) {
		outMu.Lock()
		defer outMu.Unlock()
		return out.Write(p)
	}), dispatcher)

	done := make(chan error, 1)
	go func() { done <- st.Run(context.Background()) }()

	go func() {
		_, _ = pw.Write([]byte(`{"jsonrpc":"2.0","method":"initialize","id":1}` + "\n"))
		_, _ = pw.Write([]byte(`{"jsonrpc":"2.0","method":"initialize","id":2}` + "\n"))
		_ = pw.Close()
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream transport did not finish in time")
	}

	outMu.Lock()
	raw := out.String()
	outMu.Unlock()

	ids := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		var resp rpc.Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		require.NotNil(t, resp.ID)
		ids[string(*resp.ID)] = true
	}
	assert.Len(t, ids, 2)
	assert.True(t, ids["1"])
	assert.True(t, ids["2"])
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
