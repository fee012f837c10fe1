// Package tools implements the Tool Registry, Validator, and Handlers
// (spec §4.5, §4.6): a closed, statically-bound enumeration of the eight
// tools this bridge exposes, driven by declarative schemas rather than
// reflection (spec §9's "dynamic dispatch → static registry" design
// note).
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
)

// HandlerFunc matches the teacher's own MCP tool handler signature so
// every tool implementation reads the same way a hand-registered
// mcp-go server tool would.
type HandlerFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Descriptor is one entry in the registry: the manifest-facing tool
// definition plus whether its result is eligible for the response cache
// (spec §4.4: mutating tools are never cached).
type Descriptor struct {
	Tool     mcp.Tool
	CacheTTL time.Duration // zero means never cached
	Handler  HandlerFunc
}

// Registry is the closed set of tools this process can dispatch.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

// NewRegistry builds a Registry from descriptors, preserving registration
// order for manifest listing.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Tool.Name == "" {
			return nil, fmt.Errorf("tools: descriptor with empty name")
		}
		if _, exists := r.byName[d.Tool.Name]; exists {
			return nil, fmt.Errorf("tools: duplicate tool name %q", d.Tool.Name)
		}
		r.byName[d.Tool.Name] = d
		r.order = append(r.order, d.Tool.Name)
	}
	return r, nil
}

// Lookup returns the descriptor for name, or an invalid-params error if
// no such tool is registered.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, errors.NewInvalidParams("name", fmt.Sprintf("unknown tool %q", name))
	}
	return d, nil
}

// Manifest returns every registered tool in registration order, the
// shape served at the unauthenticated manifest endpoint (spec §6).
func (r *Registry) Manifest() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].Tool)
	}
	return out
}
