package tools

import "github.com/mark3labs/mcp-go/mcp"

// stringProp and friends build mcp.ToolInputSchema property maps the same
// way the teacher's mcp_serve.go inlines them.
func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func enumProp(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

// listTasksTool, createTaskTool, etc. each build the mcp.Tool descriptor
// used both for manifest listing and for input validation (spec §4.5).
func listTasksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "listTasks",
		Description: "List tasks in a project, optionally filtered by status",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"project-id": stringProp("Project identifier"),
				"status":     enumProp("Task status filter", "open", "closed", "overdue"),
			},
			Required: []string{"project-id"},
		},
	}
}

func createTaskTool() mcp.Tool {
	return mcp.Tool{
		Name:        "createTask",
		Description: "Create a task in a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"project-id": stringProp("Project identifier"),
				"name":       stringProp("Task name"),
				"owner":      stringProp("Task owner, as an email address"),
				"due-date":   stringProp("Due date, ISO 8601 (YYYY-MM-DD)"),
			},
			Required: []string{"project-id", "name"},
		},
	}
}

func updateTaskTool() mcp.Tool {
	return mcp.Tool{
		Name:        "updateTask",
		Description: "Update a task's status, due date, or owner",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"task-id":  stringProp("Task identifier"),
				"status":   enumProp("New status", "open", "closed", "overdue"),
				"due-date": stringProp("New due date, ISO 8601 (YYYY-MM-DD)"),
				"owner":    stringProp("New owner, as an email address"),
			},
			Required: []string{"task-id"},
		},
	}
}

func getTaskDetailTool() mcp.Tool {
	return mcp.Tool{
		Name:        "getTaskDetail",
		Description: "Get full detail for a single task, including comments and history",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"task-id": stringProp("Task identifier"),
			},
			Required: []string{"task-id"},
		},
	}
}

func getProjectSummaryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "getProjectSummary",
		Description: "Summarise a project's task counts and completion rate",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"project-id": stringProp("Project identifier"),
				"period":     enumProp("Reporting period", "week", "month"),
			},
			Required: []string{"project-id"},
		},
	}
}

func downloadFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "downloadFile",
		Description: "Get a pre-signed download URL for a file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"file-id": stringProp("File identifier"),
			},
			Required: []string{"file-id"},
		},
	}
}

func uploadReviewSheetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "uploadReviewSheet",
		Description: "Upload a review sheet into a project's folder",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"project-id":     stringProp("Project identifier"),
				"folder-id":      stringProp("Destination folder identifier"),
				"name":           stringProp("File name, including extension"),
				"content-base64": stringProp("Base64-encoded file content, at most 1 GiB decoded"),
			},
			Required: []string{"project-id", "folder-id", "name"},
		},
	}
}

func searchFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "searchFiles",
		Description: "Search for files by name or content",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query":     stringProp("Search query"),
				"folder-id": stringProp("Restrict search to this folder"),
			},
			Required: []string{"query"},
		},
	}
}
