package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/upstream"
)

// idempotencyWindow is the 60s window from spec §4.6: "no duplicate from
// a single assistant turn", not global deduplication.
const idempotencyWindow = 60 * time.Second

// idempotencyMarker is the JSON stored at the createTask fingerprint key.
// An empty TaskID means a create is in flight; once the upstream call
// completes the marker is updated in place with the resulting identifier.
type idempotencyMarker struct {
	TaskID string `json:"task-id"`
}

// CreateTask implements spec §4.6's idempotent write: compute
// fingerprint = hash(project-id, normalised-name), create-if-absent on
// the marker, and either perform the upstream create or reuse whatever
// identifier a concurrent/prior call already obtained.
func (h *Handlers) CreateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsOf(req)
	if err != nil {
		return nil, err
	}
	if err := Validate(req.Params.Name, args); err != nil {
		return nil, err
	}

	projectID := stringArg(args, "project-id")
	name := stringArg(args, "name")
	fingerprint := taskFingerprint(projectID, name)
	markerKey := "createTask:" + fingerprint

	placeholder, _ := json.Marshal(idempotencyMarker{})
	acquireErr := h.deps.KV.CreateIfAbsent(ctx, markerKey, placeholder, idempotencyWindow)

	switch acquireErr {
	case nil:
		taskID, err := h.createTaskUpstream(ctx, args)
		if err != nil {
			// Leave the placeholder in place; a concurrent caller within
			// the window will see an empty TaskID and fall back to
			// matching the task list by name, without creating anything
			// itself: the guarantee is best-effort on the failure path.
			return nil, err
		}
		marker, _ := json.Marshal(idempotencyMarker{TaskID: taskID})
		if err := h.deps.KV.Set(ctx, markerKey, marker, idempotencyWindow); err != nil {
			return nil, errors.NewUpstreamUnavailable("persisting idempotency marker", err)
		}
		return mcp.NewToolResultStructuredOnly(map[string]any{"task-id": taskID}), nil

	case kv.ErrNotAcquired:
		return h.resolveExistingCreate(ctx, markerKey, projectID, name)

	default:
		return nil, errors.NewUpstreamUnavailable("checking idempotency marker", acquireErr)
	}
}

// resolveExistingCreate handles the case where another call already
// claimed the fingerprint: if its marker already carries an identifier,
// reuse it; otherwise the create is still in flight, and rather than
// blocking on it we resolve by re-fetching and matching on name, the
// same reconciliation path used after an upstream 409.
func (h *Handlers) resolveExistingCreate(
	ctx context.Context, markerKey, projectID, name string,
) (*mcp.CallToolResult, error) {
	raw, err := h.deps.KV.Get(ctx, markerKey)
	if err != nil && err != kv.ErrMiss {
		return nil, errors.NewUpstreamUnavailable("reading idempotency marker", err)
	}
	if err == nil {
		var marker idempotencyMarker
		if jsonErr := json.Unmarshal(raw, &marker); jsonErr == nil && marker.TaskID != "" {
			return mcp.NewToolResultStructuredOnly(map[string]any{"task-id": marker.TaskID}), nil
		}
	}

	taskID, err := h.findTaskByName(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructuredOnly(map[string]any{"task-id": taskID}), nil
}

func (h *Handlers) createTaskUpstream(ctx context.Context, args map[string]any) (string, error) {
	payload := map[string]any{
		"name": stringArg(args, "name"),
	}
	if owner := stringArg(args, "owner"); owner != "" {
		payload["owner"] = owner
	}
	if dueDate := stringArg(args, "due-date"); dueDate != "" {
		payload["due-date"] = dueDate
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.NewInternal("encoding create-task payload", err)
	}

	projectID := stringArg(args, "project-id")
	reqURL := fmt.Sprintf("%s/portal/%s/projects/%s/tasks",
		h.deps.ProjectsBaseURL, url.PathEscape(h.deps.PortalID), url.PathEscape(projectID))

	resp, err := h.deps.Upstream.Do(ctx, upstream.Request{
		Method: http.MethodPost, URL: reqURL, Body: body,
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		if domainErr, ok := errors.As(err); ok && domainErr.Type == errors.ErrConflict {
			return h.findTaskByName(ctx, projectID, stringArg(args, "name"))
		}
		return "", err
	}

	var parsed upstreamCreateTaskResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", errors.NewUpstreamUnavailable("decoding create-task response", err)
	}
	return parsed.Task.ID, nil
}

// findTaskByName re-fetches the project's task list (no status filter)
// and returns the first
// task whose name matches, for the upstream-409 and marker-miss
// reconciliation paths (spec §4.6).
func (h *Handlers) findTaskByName(ctx context.Context, projectID, name string) (string, error) {
	reqURL := fmt.Sprintf("%s/portal/%s/projects/%s/tasks",
		h.deps.ProjectsBaseURL, url.PathEscape(h.deps.PortalID), url.PathEscape(projectID))

	tasks, err := h.fetchTaskList(ctx, reqURL)
	if err != nil {
		return "", err
	}
	for _, t := range tasks {
		if t.Name == name {
			return t.ID, nil
		}
	}
	return "", errors.NewUpstreamUnavailable(
		fmt.Sprintf("upstream reported a conflict for task %q but it could not be found on re-fetch", name), nil)
}

// taskFingerprint hashes (project-id, normalised-name) per spec §4.6.
// Normalisation folds case and collapses surrounding whitespace so
// cosmetic variation in how an assistant phrases the same task name
// still dedupes within the window.
func taskFingerprint(projectID, name string) string {
	normalised := strings.ToLower(strings.TrimSpace(name))
	sum := sha256.Sum256([]byte(projectID + "\x00" + normalised))
	return hex.EncodeToString(sum[:])
}
