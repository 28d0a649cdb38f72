// Package fstools exposes a workspace.Workspace as the list_items, create and
// append_to_file tools.
package fstools

import (
	"context"
	"encoding/json"

	"github.com/wilhg/deskfs/pkg/errmodel"
	"github.com/wilhg/deskfs/pkg/tool"
	"github.com/wilhg/deskfs/pkg/workspace"
)

// Tool names as seen by MCP clients.
const (
	NameList   = "list_items"
	NameCreate = "create"
	NameAppend = "append_to_file"
)

// Register adds the three filesystem tools for ws to r.
func Register(r *tool.Registry, ws *workspace.Workspace) error {
	for _, t := range []tool.Tool{ListTool{WS: ws}, CreateTool{WS: ws}, AppendTool{WS: ws}} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// ListTool lists the direct children of the workspace root.
type ListTool struct{ WS *workspace.Workspace }

func (ListTool) Describe() tool.Descriptor {
	in := []byte(`{"type":"object","properties":{},"additionalProperties":false}`)
	out := []byte(`{"type":"object","properties":{"items":{"type":"array","items":{"type":"object","properties":{"name":{"type":"string"},"is_dir":{"type":"boolean"}},"required":["name","is_dir"],"additionalProperties":false}}},"required":["items"],"additionalProperties":false}`)
	return tool.Descriptor{
		Name:         NameList,
		Description:  "List the files and folders directly under the desktop. Returns [{\"name\": \"foo.txt\", \"is_dir\": false}, ...].",
		InputSchema:  in,
		OutputSchema: out,
		Permissions:  []tool.Permission{{Name: tool.PermFSRead}},
	}
}

func (t ListTool) Invoke(ctx context.Context, _ map[string]any) (map[string]any, error) {
	entries, err := t.WS.List(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": entries}, nil
}

// Render returns the bare JSON array of entries.
func (ListTool) Render(out map[string]any) string {
	b, err := json.Marshal(out["items"])
	if err != nil {
		return "[]"
	}
	return string(b)
}

// CreateTool creates a file or folder under the workspace root.
type CreateTool struct{ WS *workspace.Workspace }

func (CreateTool) Describe() tool.Descriptor {
	in := []byte(`{"type":"object","properties":{"path":{"type":"string","description":"Path relative to the desktop, e.g. 'hoge/README.md'"},"is_dir":{"type":"boolean","default":false,"description":"Create a folder when true, a file otherwise"}},"required":["path"],"additionalProperties":false}`)
	return tool.Descriptor{
		Name:         NameCreate,
		Description:  "Create a folder or an empty file on the desktop. Missing parent folders are created; existing entries are left intact.",
		InputSchema:  in,
		OutputSchema: confirmationSchema,
		Permissions:  []tool.Permission{{Name: tool.PermFSWrite}},
	}
}

func (t CreateTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	isDir, _ := args["is_dir"].(bool)
	resolved, err := t.WS.Create(ctx, path, isDir)
	if err != nil {
		return nil, err
	}
	msg := "File created: " + resolved
	if isDir {
		msg = "Directory created: " + resolved
	}
	return map[string]any{"message": msg, "path": resolved}, nil
}

func (CreateTool) Render(out map[string]any) string { return message(out) }

// AppendTool appends text to an existing file under the workspace root.
type AppendTool struct{ WS *workspace.Workspace }

func (AppendTool) Describe() tool.Descriptor {
	in := []byte(`{"type":"object","properties":{"path":{"type":"string","description":"Path relative to the desktop, e.g. 'hoge/notes.txt'"},"content":{"type":"string","description":"Text to append"}},"required":["path","content"],"additionalProperties":false}`)
	return tool.Descriptor{
		Name:         NameAppend,
		Description:  "Append text to an existing file on the desktop.",
		InputSchema:  in,
		OutputSchema: confirmationSchema,
		Permissions:  []tool.Permission{{Name: tool.PermFSWrite}},
	}
}

func (t AppendTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}
	resolved, err := t.WS.Append(ctx, path, content)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message": "Appended to " + resolved, "path": resolved}, nil
}

func (AppendTool) Render(out map[string]any) string { return message(out) }

var confirmationSchema = []byte(`{"type":"object","properties":{"message":{"type":"string"},"path":{"type":"string"}},"required":["message","path"],"additionalProperties":false}`)

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok {
		return "", errmodel.Validation("missing_fields", key+" required", map[string]any{"fields": []string{key}})
	}
	return v, nil
}

func message(out map[string]any) string {
	s, _ := out["message"].(string)
	return s
}
