package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zohobridge/mcp-gateway/pkg/cache"
	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/upstream"
)

type stubTokenSource struct{}

func (stubTokenSource) Current(context.Context) (string, error) { return "tok", nil }
func (stubTokenSource) Invalidate(context.Context) error        { return nil }

func newTestHandlers(t *testing.T, projectsSrv, filesSrv *httptest.Server) (*Handlers, kv.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := kv.NewRedisStore(client)

	deps := Deps{
		Upstream:        upstream.New(stubTokenSource{}, http.DefaultClient),
		Cache:           cache.New(store, 5*time.Minute),
		KV:              store,
		PortalID:        "portal-1",
	}
	if projectsSrv != nil {
		deps.ProjectsBaseURL = projectsSrv.URL
	}
	if filesSrv != nil {
		deps.FilesBaseURL = filesSrv.URL
	}
	return NewHandlers(deps), store
}

func callToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestHandlers_ListTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(upstreamTaskListResponse{
			Tasks: []Task{{ID: "T1", Name: "A", Status: "open"}},
		})
	}))
	defer srv.Close()

	h, _ := newTestHandlers(t, srv, nil)
	result, err := h.ListTasks(context.Background(), callToolRequest("listTasks", map[string]any{
		"project-id": "P1", "status": "open",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandlers_CreateTask_IdempotentWithinWindow(t *testing.T) {
	var createCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		createCalls.Add(1)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"task": map[string]any{"id": "T9"}})
	}))
	defer srv.Close()

	h, _ := newTestHandlers(t, srv, nil)
	ctx := context.Background()
	req := callToolRequest("createTask", map[string]any{"project-id": "P1", "name": "Review"})

	r1, err := h.CreateTask(ctx, req)
	require.NoError(t, err)
	r2, err := h.CreateTask(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, r1.StructuredContent, r2.StructuredContent)
	assert.EqualValues(t, 1, createCalls.Load(), "upstream create must be called exactly once")
}

func TestHandlers_GetProjectSummary_ZeroTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(upstreamTaskListResponse{Tasks: []Task{}})
	}))
	defer srv.Close()

	h, _ := newTestHandlers(t, srv, nil)
	result, err := h.GetProjectSummary(context.Background(), callToolRequest("getProjectSummary", map[string]any{
		"project-id": "P1",
	}))
	require.NoError(t, err)

	summary, ok := result.StructuredContent.(ProjectSummary)
	require.True(t, ok)
	assert.Equal(t, 0, summary.TotalTasks)
	assert.Equal(t, float64(0), summary.CompletionRate, "zero tasks must report rate 0, not NaN")
}

func TestHandlers_GetProjectSummary_Counts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		var tasks []Task
		switch status {
		case "open":
			tasks = make([]Task, 4)
		case "closed":
			tasks = make([]Task, 6)
		case "overdue":
			tasks = make([]Task, 2)
		}
		_ = json.NewEncoder(w).Encode(upstreamTaskListResponse{Tasks: tasks})
	}))
	defer srv.Close()

	h, _ := newTestHandlers(t, srv, nil)
	result, err := h.GetProjectSummary(context.Background(), callToolRequest("getProjectSummary", map[string]any{
		"project-id": "P1",
	}))
	require.NoError(t, err)

	summary, ok := result.StructuredContent.(ProjectSummary)
	require.True(t, ok)
	assert.Equal(t, 12, summary.TotalTasks)
	assert.Equal(t, 0.5, summary.CompletionRate)
	assert.Equal(t, 2, summary.OverdueCount)
}

func TestHandlers_DownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(upstreamDownloadFileResponse{
			FileURL: "https://files.example.com/signed", ExpiresAt: "2026-08-01T00:00:00Z",
		})
	}))
	defer srv.Close()

	h, _ := newTestHandlers(t, nil, srv)
	result, err := h.DownloadFile(context.Background(), callToolRequest("downloadFile", map[string]any{
		"file-id": "F1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandlers_UploadReviewSheet_InfersContentType(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewEncoder(w).Encode(upstreamUploadResponse{FileID: "F9"})
	}))
	defer srv.Close()

	h, _ := newTestHandlers(t, nil, srv)
	content := "dGVzdCBkYXRh" // base64("test data")
	result, err := h.UploadReviewSheet(context.Background(), callToolRequest("uploadReviewSheet", map[string]any{
		"project-id": "P1", "folder-id": "F1", "name": "notes.md", "content-base64": content,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, gotContentType, "multipart/form-data")
}
