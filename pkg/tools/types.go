package tools

// Task is the normalised task shape used throughout this package,
// matching the result shapes enumerated in spec §6.
type Task struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Owner   string `json:"owner,omitempty"`
	Status  string `json:"status"`
	DueDate string `json:"due-date,omitempty"`
	URL     string `json:"url,omitempty"`
}

// upstreamTaskListResponse is the shape expected back from the upstream
// project-management API's task-list endpoint.
type upstreamTaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// upstreamCreateTaskResponse wraps the created task identifier the way
// the upstream API nests it under "task".
type upstreamCreateTaskResponse struct {
	Task struct {
		ID string `json:"id"`
	} `json:"task"`
}

// TaskDetail is the result shape for getTaskDetail (spec §6).
type TaskDetail struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Owner       string   `json:"owner,omitempty"`
	DueDate     string   `json:"due-date,omitempty"`
	Comments    []string `json:"comments"`
	History     []string `json:"history"`
}

// ProjectSummary is the result shape for getProjectSummary (spec §6).
type ProjectSummary struct {
	ProjectID      string  `json:"project-id"`
	TotalTasks     int     `json:"total-tasks"`
	CompletionRate float64 `json:"completion-rate"`
	OverdueCount   int     `json:"overdue-count"`
}

// FileRef is one entry in a searchFiles result (spec §6).
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type upstreamSearchFilesResponse struct {
	Files []FileRef `json:"files"`
}

type upstreamDownloadFileResponse struct {
	FileURL   string `json:"file-url"`
	ExpiresAt string `json:"expires-at"`
}

type upstreamUploadResponse struct {
	FileID string `json:"file-id"`
}
