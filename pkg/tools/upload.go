package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
	"github.com/zohobridge/mcp-gateway/pkg/upstream"
)

// reviewSheetContentTypes maps the filename suffixes spec §4.6 names to
// their standard media types; anything else falls back to
// application/octet-stream.
var reviewSheetContentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".csv":  "text/csv",
}

func inferContentType(name string) string {
	if ct, ok := reviewSheetContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// UploadReviewSheet implements spec §4.5/§4.6: decodes and size-bounds
// the content (Validate already rejected anything over the 1 GiB
// ceiling), infers a content type from the filename, and uploads as
// multipart form data.
func (h *Handlers) UploadReviewSheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsOf(req)
	if err != nil {
		return nil, err
	}
	if err := Validate(req.Params.Name, args); err != nil {
		return nil, err
	}

	name := stringArg(args, "name")
	decoded, decErr := base64.StdEncoding.DecodeString(stringArg(args, "content-base64"))
	if decErr != nil {
		return nil, errors.NewInvalidParams("content-base64", "must be valid base64")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, name)},
		"Content-Type":        {inferContentType(name)},
	})
	if err != nil {
		return nil, errors.NewInternal("building upload request", err)
	}
	if _, err := part.Write(decoded); err != nil {
		return nil, errors.NewInternal("building upload request", err)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.NewInternal("building upload request", err)
	}

	folderID := stringArg(args, "folder-id")
	reqURL := fmt.Sprintf("%s/folders/%s/files", h.deps.FilesBaseURL, url.PathEscape(folderID))

	resp, err := h.deps.Upstream.Do(ctx, upstream.Request{
		Method: http.MethodPost, URL: reqURL, Body: body.Bytes(),
		Headers: map[string]string{"Content-Type": writer.FormDataContentType()},
	})
	if err != nil {
		return nil, err
	}

	var parsed upstreamUploadResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, errors.NewUpstreamUnavailable("decoding upload response", err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{"file-id": parsed.FileID}), nil
}
