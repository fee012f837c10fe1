package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
	"github.com/zohobridge/mcp-gateway/pkg/upstream"
)

// argsOf decodes the tool call's named arguments into a plain map, the
// shape Validate and every handler below operate on.
func argsOf(req mcp.CallToolRequest) (map[string]any, error) {
	var args map[string]any
	if err := req.BindArguments(&args); err != nil {
		return nil, errors.NewInvalidParams("arguments", "could not parse arguments")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

// ListTasks implements spec §4.5/§4.6's read-only task listing.
func (h *Handlers) ListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsOf(req)
	if err != nil {
		return nil, err
	}
	if err := Validate(req.Params.Name, args); err != nil {
		return nil, err
	}

	projectID := stringArg(args, "project-id")
	reqURL := fmt.Sprintf("%s/portal/%s/projects/%s/tasks",
		h.deps.ProjectsBaseURL, url.PathEscape(h.deps.PortalID), url.PathEscape(projectID))
	if status := stringArg(args, "status"); status != "" {
		reqURL += "?status=" + url.QueryEscape(status)
	}

	tasks, err := h.fetchTaskList(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{"tasks": tasks}), nil
}

func (h *Handlers) fetchTaskList(ctx context.Context, reqURL string) ([]Task, error) {
	resp, err := h.deps.Upstream.Do(ctx, upstream.Request{Method: http.MethodGet, URL: reqURL})
	if err != nil {
		return nil, err
	}
	var parsed upstreamTaskListResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, errors.NewUpstreamUnavailable("decoding task list response", err)
	}
	return parsed.Tasks, nil
}

// UpdateTask implements spec §4.5/§4.6's task mutation.
func (h *Handlers) UpdateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsOf(req)
	if err != nil {
		return nil, err
	}
	if err := Validate(req.Params.Name, args); err != nil {
		return nil, err
	}

	taskID := stringArg(args, "task-id")
	patch := map[string]any{}
	for _, field := range []string{"status", "due-date", "owner"} {
		if v := stringArg(args, field); v != "" {
			patch[field] = v
		}
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, errors.NewInternal("encoding update payload", err)
	}

	reqURL := fmt.Sprintf("%s/portal/%s/tasks/%s",
		h.deps.ProjectsBaseURL, url.PathEscape(h.deps.PortalID), url.PathEscape(taskID))
	if _, err := h.deps.Upstream.Do(ctx, upstream.Request{
		Method: http.MethodPatch, URL: reqURL, Body: body,
		Headers: map[string]string{"Content-Type": "application/json"},
	}); err != nil {
		return nil, err
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{"ok": true}), nil
}

// GetTaskDetail implements spec §4.5/§4.6's full task readback.
func (h *Handlers) GetTaskDetail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsOf(req)
	if err != nil {
		return nil, err
	}
	if err := Validate(req.Params.Name, args); err != nil {
		return nil, err
	}

	taskID := stringArg(args, "task-id")
	reqURL := fmt.Sprintf("%s/portal/%s/tasks/%s",
		h.deps.ProjectsBaseURL, url.PathEscape(h.deps.PortalID), url.PathEscape(taskID))

	resp, err := h.deps.Upstream.Do(ctx, upstream.Request{Method: http.MethodGet, URL: reqURL})
	if err != nil {
		return nil, err
	}
	var detail TaskDetail
	if err := json.Unmarshal(resp.Body, &detail); err != nil {
		return nil, errors.NewUpstreamUnavailable("decoding task detail response", err)
	}
	if detail.Comments == nil {
		detail.Comments = []string{}
	}
	if detail.History == nil {
		detail.History = []string{}
	}

	return mcp.NewToolResultStructuredOnly(detail), nil
}

// DownloadFile implements spec §4.5/§4.6: a pre-signed URL passthrough,
// never proxying file bytes itself.
func (h *Handlers) DownloadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsOf(req)
	if err != nil {
		return nil, err
	}
	if err := Validate(req.Params.Name, args); err != nil {
		return nil, err
	}

	fileID := stringArg(args, "file-id")
	reqURL := fmt.Sprintf("%s/files/%s/download-url", h.deps.FilesBaseURL, url.PathEscape(fileID))

	resp, err := h.deps.Upstream.Do(ctx, upstream.Request{Method: http.MethodGet, URL: reqURL})
	if err != nil {
		return nil, err
	}
	var parsed upstreamDownloadFileResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, errors.NewUpstreamUnavailable("decoding download-url response", err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{
		"file-url":   parsed.FileURL,
		"expires-at": parsed.ExpiresAt,
	}), nil
}

// SearchFiles implements spec §4.5/§4.6's file search.
func (h *Handlers) SearchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsOf(req)
	if err != nil {
		return nil, err
	}
	if err := Validate(req.Params.Name, args); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("query", stringArg(args, "query"))
	if folderID := stringArg(args, "folder-id"); folderID != "" {
		q.Set("folder-id", folderID)
	}
	reqURL := fmt.Sprintf("%s/files/search?%s", h.deps.FilesBaseURL, q.Encode())

	resp, err := h.deps.Upstream.Do(ctx, upstream.Request{Method: http.MethodGet, URL: reqURL})
	if err != nil {
		return nil, err
	}
	var parsed upstreamSearchFilesResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, errors.NewUpstreamUnavailable("decoding search-files response", err)
	}
	if parsed.Files == nil {
		parsed.Files = []FileRef{}
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{"files": parsed.Files}), nil
}
