package tools

import (
	"time"

	"github.com/zohobridge/mcp-gateway/pkg/cache"
	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/upstream"
)

// Deps are the shared dependencies every handler composes over: the
// authenticated upstream client, the response cache, the coordination
// store (for createTask's idempotency marker), and the upstream tenant
// addressing (spec §6).
type Deps struct {
	Upstream *upstream.Client
	Cache    *cache.Cache
	KV       kv.Store

	ProjectsBaseURL string
	FilesBaseURL    string
	PortalID        string
}

// Handlers groups the tool implementations bound to one set of Deps.
type Handlers struct {
	deps Deps
}

// NewHandlers constructs a Handlers for deps.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Descriptors returns every tool descriptor bound to h, in the order the
// manifest presents them (spec §4.5's table order).
func (h *Handlers) Descriptors() []Descriptor {
	return []Descriptor{
		{Tool: listTasksTool(), CacheTTL: 60 * time.Second, Handler: h.ListTasks},
		{Tool: createTaskTool(), Handler: h.CreateTask},
		{Tool: updateTaskTool(), Handler: h.UpdateTask},
		{Tool: getTaskDetailTool(), CacheTTL: 30 * time.Second, Handler: h.GetTaskDetail},
		{Tool: getProjectSummaryTool(), CacheTTL: 60 * time.Second, Handler: h.GetProjectSummary},
		{Tool: downloadFileTool(), Handler: h.DownloadFile},
		{Tool: uploadReviewSheetTool(), Handler: h.UploadReviewSheet},
		{Tool: searchFilesTool(), CacheTTL: 30 * time.Second, Handler: h.SearchFiles},
	}
}
