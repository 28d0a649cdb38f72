// Package tool defines the contract shared by every tool the server exposes:
// a static descriptor (schemas, permissions) and an Invoke method over
// JSON-shaped arguments.
package tool

import (
	"context"
)

// Well-known permissions.
const (
	PermFSRead  = "fs:read"
	PermFSWrite = "fs:write"
)

// Permission describes a capability a tool requires.
type Permission struct {
	// Name is a stable identifier such as fs:read.
	Name string `json:"name"`
	// Description explains what the permission allows.
	Description string `json:"description,omitempty"`
}

// Descriptor declares the static interface of a tool.
// InputSchema and OutputSchema are JSON Schemas (draft 2020-12) in UTF-8 bytes.
type Descriptor struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	InputSchema  []byte       `json:"input_schema"`
	OutputSchema []byte       `json:"output_schema"`
	Permissions  []Permission `json:"permissions,omitempty"`
}

// Tool is a callable unit with schema-validated inputs/outputs and a permission model.
type Tool interface {
	// Describe returns the public descriptor (schemas, permissions).
	Describe() Descriptor
	// Invoke executes the tool with validated args. The args MUST conform to InputSchema.
	// The returned map MUST conform to OutputSchema.
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Describe is a nil-safe helper to get a Descriptor from a Tool.
func Describe(t Tool) Descriptor {
	if t == nil {
		return Descriptor{}
	}
	return t.Describe()
}

// Allow builds an allowed-permission set.
func Allow(perms ...string) map[string]bool {
	out := make(map[string]bool, len(perms))
	for _, p := range perms {
		out[p] = true
	}
	return out
}

// Renderer is implemented by tools whose output has a human readable text
// form distinct from its JSON encoding.
type Renderer interface {
	Render(out map[string]any) string
}
