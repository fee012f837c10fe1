package tools

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
)

// maxUploadDecodedBytes is the 1 GiB ceiling from spec §4.5/§8.
const maxUploadDecodedBytes = 1 << 30

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// paramKind classifies how a declared parameter is validated beyond
// presence, per spec §4.5.
type paramKind int

const (
	kindString paramKind = iota
	kindEnum
	kindEmail
	kindDate
	kindBoundedBase64
)

type paramSpec struct {
	name        string
	required    bool
	kind        paramKind
	enum        []string
	forbidEmpty bool
}

// toolSpec declares the full parameter contract for one tool, used to
// reject unknown parameters, enforce required/enum/format rules, and (for
// updateTask) the "at least one of" rule spec §4.5 calls out.
type toolSpec struct {
	params       []paramSpec
	atLeastOneOf []string
}

var specs = map[string]toolSpec{
	"listTasks": {params: []paramSpec{
		{name: "project-id", required: true, kind: kindString, forbidEmpty: true},
		{name: "status", kind: kindEnum, enum: []string{"open", "closed", "overdue"}},
	}},
	"createTask": {params: []paramSpec{
		{name: "project-id", required: true, kind: kindString, forbidEmpty: true},
		{name: "name", required: true, kind: kindString, forbidEmpty: true},
		{name: "owner", kind: kindEmail},
		{name: "due-date", kind: kindDate},
	}},
	"updateTask": {
		params: []paramSpec{
			{name: "task-id", required: true, kind: kindString, forbidEmpty: true},
			{name: "status", kind: kindEnum, enum: []string{"open", "closed", "overdue"}},
			{name: "due-date", kind: kindDate},
			{name: "owner", kind: kindEmail},
		},
		atLeastOneOf: []string{"status", "due-date", "owner"},
	},
	"getTaskDetail": {params: []paramSpec{
		{name: "task-id", required: true, kind: kindString, forbidEmpty: true},
	}},
	"getProjectSummary": {params: []paramSpec{
		{name: "project-id", required: true, kind: kindString, forbidEmpty: true},
		{name: "period", kind: kindEnum, enum: []string{"week", "month"}},
	}},
	"downloadFile": {params: []paramSpec{
		{name: "file-id", required: true, kind: kindString, forbidEmpty: true},
	}},
	"uploadReviewSheet": {params: []paramSpec{
		{name: "project-id", required: true, kind: kindString, forbidEmpty: true},
		{name: "folder-id", required: true, kind: kindString, forbidEmpty: true},
		{name: "name", required: true, kind: kindString, forbidEmpty: true},
		{name: "content-base64", kind: kindBoundedBase64},
	}},
	"searchFiles": {params: []paramSpec{
		{name: "query", required: true, kind: kindString, forbidEmpty: true},
		{name: "folder-id", kind: kindString},
	}},
}

// Validate checks args against the declared contract for toolName,
// rejecting unknown parameters, missing required parameters, empty
// strings where forbidden, out-of-enum values, malformed dates, and
// oversized base64 content — all as invalid-params naming the offending
// field (spec §4.5).
func Validate(toolName string, args map[string]any) error {
	spec, ok := specs[toolName]
	if !ok {
		return errors.NewInvalidParams("name", fmt.Sprintf("unknown tool %q", toolName))
	}

	declared := make(map[string]paramSpec, len(spec.params))
	for _, p := range spec.params {
		declared[p.name] = p
	}
	for k := range args {
		if _, ok := declared[k]; !ok {
			return errors.NewInvalidParams(k, "unrecognised parameter")
		}
	}

	var anyOfPresent bool
	for _, p := range spec.params {
		raw, present := args[p.name]
		if !present {
			if p.required {
				return errors.NewInvalidParams(p.name, "required parameter is missing")
			}
			continue
		}
		if contains(spec.atLeastOneOf, p.name) {
			anyOfPresent = true
		}

		s, ok := raw.(string)
		if !ok {
			return errors.NewInvalidParams(p.name, "must be a string")
		}
		if (p.required || p.forbidEmpty) && s == "" {
			return errors.NewInvalidParams(p.name, "must not be empty")
		}
		if s == "" {
			continue
		}

		switch p.kind {
		case kindEnum:
			if !contains(p.enum, s) {
				return errors.NewInvalidParams(p.name, fmt.Sprintf("must be one of %v", p.enum))
			}
		case kindEmail:
			if !emailPattern.MatchString(s) {
				return errors.NewInvalidParams(p.name, "must be a valid email address")
			}
		case kindDate:
			if _, err := time.Parse("2006-01-02", s); err != nil {
				return errors.NewInvalidParams(p.name, "must be an ISO 8601 date (YYYY-MM-DD)")
			}
		case kindBoundedBase64:
			if err := validateBoundedBase64(p.name, s); err != nil {
				return err
			}
		case kindString:
			// no further validation
		}
	}

	if len(spec.atLeastOneOf) > 0 && !anyOfPresent {
		return errors.NewInvalidParams(
			fmt.Sprintf("%v", spec.atLeastOneOf), "at least one of these parameters is required")
	}

	return nil
}

// validateBoundedBase64 rejects content whose decoded size would exceed
// the ceiling before decoding it, per spec §4.5's "reject before
// decoding where possible by inspecting encoded length".
func validateBoundedBase64(field, s string) error {
	// Each 4 encoded characters decode to at most 3 bytes; use this
	// estimate to short-circuit before touching genuinely huge inputs.
	estimatedDecoded := (int64(len(s)) / 4) * 3
	if estimatedDecoded > maxUploadDecodedBytes {
		return errors.NewInvalidParams(field, "decoded content exceeds the 1 GiB size ceiling")
	}

	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return errors.NewInvalidParams(field, "must be valid base64")
	}
	if int64(len(decoded)) > maxUploadDecodedBytes {
		return errors.NewInvalidParams(field, "decoded content exceeds the 1 GiB size ceiling")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
