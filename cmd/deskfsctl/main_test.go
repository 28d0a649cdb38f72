package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wilhg/deskfs/pkg/journal"
	"github.com/wilhg/deskfs/pkg/mcpserver"
	"github.com/wilhg/deskfs/pkg/tool"
	"github.com/wilhg/deskfs/pkg/tool/fstools"
	"github.com/wilhg/deskfs/pkg/workspace"
)

func startServer(t *testing.T) (url, root string) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	reg := tool.NewRegistry()
	if err := fstools.Register(reg, ws); err != nil {
		t.Fatal(err)
	}
	s, err := mcpserver.New(reg, mcpserver.WithToken("tok"))
	if err != nil {
		t.Fatal(err)
	}
	hs := httptest.NewServer(s.HTTPHandler())
	t.Cleanup(hs.Close)
	return hs.URL + "/mcp", ws.Root()
}

func ctl(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out, io.Discard)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	url, root := startServer(t)
	base := []string{"-url", url, "-token", "tok"}

	out, err := ctl(t, append(base, "create", "-dir", "notes")...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Directory created: ") {
		t.Fatalf("create: %q", out)
	}
	if _, err := ctl(t, append(base, "create", "notes/todo.txt")...); err != nil {
		t.Fatal(err)
	}
	if _, err := ctl(t, append(base, "append", "notes/todo.txt", "buy", "milk")...); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(root, "notes", "todo.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "buy milk" {
		t.Fatalf("content=%q", b)
	}

	out, err = ctl(t, append(base, "list")...)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != `[{"name":"notes","is_dir":true}]` {
		t.Fatalf("list: %q", out)
	}

	out, err = ctl(t, append(base, "tools")...)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{fstools.NameList, fstools.NameCreate, fstools.NameAppend} {
		if !strings.Contains(out, name) {
			t.Fatalf("tools output missing %s:\n%s", name, out)
		}
	}

	if _, err := ctl(t, append(base, "append", "../escape.txt", "x")...); err == nil || !strings.Contains(err.Error(), "Access denied") {
		t.Fatalf("err=%v want access denied", err)
	}
}

func TestUsageErrors(t *testing.T) {
	if _, err := ctl(t); err == nil {
		t.Fatal("expected missing command error")
	}
	url, _ := startServer(t)
	base := []string{"-url", url, "-token", "tok"}
	for _, args := range [][]string{{"frobnicate"}, {"create"}, {"append", "only-path"}} {
		if _, err := ctl(t, append(base, args...)...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestJournalCommand(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite:file:" + filepath.Join(t.TempDir(), "journal.sqlite") + "?_pragma=busy_timeout(5000)"
	st, err := journal.Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(ctx, journal.Record{Tool: fstools.NameCreate, Path: "a.txt"}); err != nil {
		t.Fatal(err)
	}

	out, err := ctl(t, "-journal", dsn, "journal", "-n", "5")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "a.txt") || !strings.Contains(out, "ok") {
		t.Fatalf("journal output:\n%s", out)
	}
	if _, err := ctl(t, "-journal", "", "journal"); err == nil {
		t.Fatal("expected missing dsn error")
	}
}
