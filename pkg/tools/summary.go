package tools

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
)

var summaryStatuses = []string{"open", "closed", "overdue"}

// GetProjectSummary implements spec §4.6's derived summary: parallel
// listTasks calls per status, then total/completion-rate/overdue-count
// computed locally. The summary result is cached by the dispatcher under
// its own 60s TTL (see Descriptors); the constituent task-list reads here
// go straight to the upstream and do not use the cache.
func (h *Handlers) GetProjectSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsOf(req)
	if err != nil {
		return nil, err
	}
	if err := Validate(req.Params.Name, args); err != nil {
		return nil, err
	}

	projectID := stringArg(args, "project-id")
	counts, err := h.countTasksByStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}

	total := counts["open"] + counts["closed"] + counts["overdue"]
	var completionRate float64
	if total > 0 {
		completionRate = float64(counts["closed"]) / float64(total)
	}

	summary := ProjectSummary{
		ProjectID:      projectID,
		TotalTasks:     total,
		CompletionRate: completionRate,
		OverdueCount:   counts["overdue"],
	}

	return mcp.NewToolResultStructuredOnly(summary), nil
}

// countTasksByStatus issues one listTasks call per status concurrently
// (spec §4.6), returning the count of tasks in each.
func (h *Handlers) countTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	counts := make(map[string]int, len(summaryStatuses))
	results := make([][]Task, len(summaryStatuses))

	g, ctx := errgroup.WithContext(ctx)
	for i, status := range summaryStatuses {
		i, status := i, status
		g.Go(func() error {
			reqURL := fmt.Sprintf("%s/portal/%s/projects/%s/tasks?status=%s",
				h.deps.ProjectsBaseURL, url.PathEscape(h.deps.PortalID),
				url.PathEscape(projectID), url.QueryEscape(status))
			tasks, err := h.fetchTaskList(ctx, reqURL)
			if err != nil {
				return err
			}
			results[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, status := range summaryStatuses {
		counts[status] = len(results[i])
	}
	return counts, nil
}
