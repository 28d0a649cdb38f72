package fstools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wilhg/deskfs/pkg/errmodel"
	"github.com/wilhg/deskfs/pkg/tool"
	"github.com/wilhg/deskfs/pkg/workspace"
)

func newRegistry(t *testing.T) (*tool.Registry, *workspace.Workspace) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := tool.NewRegistry()
	if err := Register(r, ws); err != nil {
		t.Fatal(err)
	}
	return r, ws
}

func TestDescriptorsCompile(t *testing.T) {
	r, _ := newRegistry(t)
	n := 0
	r.Range(func(name string, tl tool.Tool) {
		n++
		d := tl.Describe()
		if err := tool.CompileJSONSchema(d.InputSchema); err != nil {
			t.Fatalf("%s input schema: %v", name, err)
		}
		if err := tool.CompileJSONSchema(d.OutputSchema); err != nil {
			t.Fatalf("%s output schema: %v", name, err)
		}
		if _, ok := tl.(tool.Renderer); !ok {
			t.Fatalf("%s does not render text", name)
		}
	})
	if n != 3 {
		t.Fatalf("registered %d tools, want 3", n)
	}
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	r, ws := newRegistry(t)
	rw := tool.Allow(tool.PermFSRead, tool.PermFSWrite)

	out, err := r.Call(ctx, NameCreate, map[string]any{"path": "a/b.txt"}, rw, tool.JSONSchemaValidator)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(ws.Root(), "a", "b.txt")
	if out["message"] != "File created: "+want || out["path"] != want {
		t.Fatalf("out=%v", out)
	}

	out, err = r.Call(ctx, NameAppend, map[string]any{"path": "a/b.txt", "content": "hi"}, rw, tool.JSONSchemaValidator)
	if err != nil {
		t.Fatal(err)
	}
	if out["message"] != "Appended to "+want {
		t.Fatalf("out=%v", out)
	}
	if b, _ := os.ReadFile(want); string(b) != "hi" {
		t.Fatalf("content=%q", b)
	}

	out, err = r.Call(ctx, NameList, map[string]any{}, rw, tool.JSONSchemaValidator)
	if err != nil {
		t.Fatal(err)
	}
	text := ListTool{}.Render(out)
	if text != `[{"name":"a","is_dir":true}]` {
		t.Fatalf("list text=%s", text)
	}
}

func TestCreateDirectoryMessage(t *testing.T) {
	r, ws := newRegistry(t)
	out, err := r.Call(context.Background(), NameCreate, map[string]any{"path": "folder", "is_dir": true}, tool.Allow(tool.PermFSWrite), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := (CreateTool{}).Render(out); got != "Directory created: "+filepath.Join(ws.Root(), "folder") {
		t.Fatalf("message=%q", got)
	}
}

func TestErrorsSurfaceCodes(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	rw := tool.Allow(tool.PermFSRead, tool.PermFSWrite)

	cases := []struct {
		name string
		args map[string]any
		code string
	}{
		{NameCreate, map[string]any{"path": "../evil"}, errmodel.CodeAccessDenied},
		{NameAppend, map[string]any{"path": "missing.txt", "content": "x"}, errmodel.CodeFileNotFound},
		{NameAppend, map[string]any{"path": ".", "content": "x"}, errmodel.CodeIsADirectory},
		{NameAppend, map[string]any{"path": "x.txt"}, errmodel.CodeInvalidInput},
		{NameCreate, map[string]any{"path": 3}, errmodel.CodeInvalidInput},
		{NameCreate, map[string]any{"path": "x", "mode": "0777"}, errmodel.CodeInvalidInput},
	}
	for _, c := range cases {
		_, err := r.Call(ctx, c.name, c.args, rw, tool.JSONSchemaValidator)
		if !errmodel.HasCode(err, c.code) {
			t.Fatalf("%s(%v): err=%v want %s", c.name, c.args, err, c.code)
		}
	}
}

func TestReadOnlyPermissions(t *testing.T) {
	ctx := context.Background()
	r, ws := newRegistry(t)
	ro := tool.Allow(tool.PermFSRead)

	if _, err := r.Call(ctx, NameList, nil, ro, nil); err != nil {
		t.Fatalf("list should be allowed: %v", err)
	}
	for _, name := range []string{NameCreate, NameAppend} {
		_, err := r.Call(ctx, name, map[string]any{"path": "f.txt", "content": "x"}, ro, nil)
		if !errmodel.HasCode(err, errmodel.CodeForbidden) {
			t.Fatalf("%s: err=%v want forbidden", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(ws.Root(), "f.txt")); !os.IsNotExist(err) {
		t.Fatal("read-only call reached the filesystem")
	}
}

func TestDescriptionsMentionDesktop(t *testing.T) {
	for _, tl := range []tool.Tool{ListTool{}, CreateTool{}, AppendTool{}} {
		if d := tl.Describe(); !strings.Contains(d.Description, "desktop") {
			t.Fatalf("%s description=%q", d.Name, d.Description)
		}
	}
}
