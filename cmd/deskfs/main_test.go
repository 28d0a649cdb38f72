package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wilhg/deskfs/pkg/config"
	"github.com/wilhg/deskfs/pkg/errmodel"
	"github.com/wilhg/deskfs/pkg/mcpclient"
	"github.com/wilhg/deskfs/pkg/tool/fstools"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Root:      t.TempDir(),
		Transport: config.TransportHTTP,
		Addr:      "127.0.0.1:0",
		LogLevel:  "info",
	}
}

func TestParseFlags(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Transport = config.TransportStdio
	show, err := parseFlags([]string{"-root", "/tmp/x", "-read-only", "-transport", "http", "-token", "t"}, cfg, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if show {
		t.Fatal("version flag not given")
	}
	if cfg.Root != "/tmp/x" || !cfg.ReadOnly || cfg.Transport != config.TransportHTTP || cfg.HTTPToken != "t" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Addr != "127.0.0.1:0" {
		t.Fatalf("unset flag overwrote addr: %s", cfg.Addr)
	}

	show, err = parseFlags([]string{"-version"}, cfg, io.Discard)
	if err != nil || !show {
		t.Fatalf("show=%v err=%v", show, err)
	}
	if _, err := parseFlags([]string{"-nope"}, cfg, io.Discard); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestBuildServer_HTTP(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig(t)
	cfg.Journal = "sqlite:file:" + filepath.Join(t.TempDir(), "journal.sqlite") + "?_pragma=busy_timeout(5000)"
	srv, cleanup, err := buildServer(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	hs := httptest.NewServer(srv.HTTPHandler())
	defer hs.Close()

	res, err := http.Get(hs.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", res.StatusCode)
	}

	c, err := mcpclient.Dial(ctx, hs.URL+"/mcp")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	out, err := c.CallTool(ctx, fstools.NameCreate, map[string]any{"path": "hello.txt"})
	if err != nil {
		t.Fatal(err)
	}
	root, _ := filepath.EvalSymlinks(cfg.Root)
	if want := "File created: " + filepath.Join(root, "hello.txt"); out.Text != want {
		t.Fatalf("text=%q want %q", out.Text, want)
	}
}

func TestBuildServer_ReadOnly(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig(t)
	cfg.ReadOnly = true
	srv, cleanup, err := buildServer(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	hs := httptest.NewServer(srv.HTTPHandler())
	defer hs.Close()

	c, err := mcpclient.Dial(ctx, hs.URL+"/mcp")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.CallTool(ctx, fstools.NameList, nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := c.CallTool(ctx, fstools.NameCreate, map[string]any{"path": "x"}); !errmodel.HasCode(err, errmodel.CodeForbidden) {
		t.Fatalf("err=%v want forbidden", err)
	}
}

func TestBuildServer_BadJournal(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Journal = "mysql://nope"
	if _, _, err := buildServer(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected journal error")
	}
}

func TestServeHTTP_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, addr, http.NotFoundHandler(), zap.NewNop()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveHTTP: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveHTTP did not return after cancel")
	}
}
