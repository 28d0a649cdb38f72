package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wilhg/deskfs/pkg/config"
	"github.com/wilhg/deskfs/pkg/journal"
	"github.com/wilhg/deskfs/pkg/logging"
	"github.com/wilhg/deskfs/pkg/mcpserver"
	"github.com/wilhg/deskfs/pkg/otel"
	"github.com/wilhg/deskfs/pkg/tool"
	"github.com/wilhg/deskfs/pkg/tool/fstools"
	"github.com/wilhg/deskfs/pkg/workspace"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	showVersion, err := parseFlags(os.Args[1:], cfg, os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if showVersion {
		fmt.Printf("deskfs %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags overrides env-derived values in cfg with command line flags.
func parseFlags(args []string, cfg *config.Config, out io.Writer) (showVersion bool, err error) {
	fs := flag.NewFlagSet("deskfs", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "directory exposed to clients (DESKFS_ROOT)")
	fs.BoolVar(&cfg.ReadOnly, "read-only", cfg.ReadOnly, "only allow list_items (DESKFS_READ_ONLY)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "stdio or http (DESKFS_TRANSPORT)")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address (DESKFS_ADDR)")
	fs.StringVar(&cfg.HTTPToken, "token", cfg.HTTPToken, "bearer token required on /mcp (DESKFS_HTTP_TOKEN)")
	fs.StringVar(&cfg.Journal, "journal", cfg.Journal, "call journal DSN, sqlite:... or postgres://... (DESKFS_JOURNAL_DSN)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (DESKFS_LOG_LEVEL)")
	fs.BoolVar(&cfg.LogDev, "log-dev", cfg.LogDev, "human readable logs (DESKFS_LOG_DEV)")
	fs.BoolVar(&cfg.TraceStdout, "trace-stdout", cfg.TraceStdout, "export spans to the console (DESKFS_TRACE_STDOUT)")
	err = fs.Parse(args)
	return showVersion, err
}

func run(ctx context.Context, cfg *config.Config) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Development = cfg.LogDev
	log, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.TraceStdout {
		shutdown, err := otel.Init(ctx, otel.Config{ServiceVersion: version, UseStdout: true})
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	srv, cleanup, err := buildServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Transport == config.TransportStdio {
		return srv.ServeStdio(ctx)
	}
	return serveHTTP(ctx, cfg.Addr, srv.HTTPHandler(), log)
}

// buildServer wires workspace, tools, journal and MCP server from cfg.
func buildServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*mcpserver.Server, func(), error) {
	var wsOpts []workspace.Option
	allowed := tool.Allow(tool.PermFSRead, tool.PermFSWrite)
	if cfg.ReadOnly {
		wsOpts = append(wsOpts, workspace.WithReadOnly())
		allowed = tool.Allow(tool.PermFSRead)
	}
	ws, err := workspace.New(cfg.Root, wsOpts...)
	if err != nil {
		return nil, nil, err
	}
	if info, err := os.Stat(ws.Root()); err != nil || !info.IsDir() {
		log.Warn("root directory does not exist yet; list_items will fail until it does", zap.String("root", ws.Root()))
	}

	reg := tool.NewRegistry()
	if err := fstools.Register(reg, ws); err != nil {
		return nil, nil, err
	}

	var j journal.Journal = journal.Nop{}
	if cfg.Journal != "" {
		st, err := journal.Open(ctx, cfg.Journal)
		if err != nil {
			return nil, nil, fmt.Errorf("journal: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("journal: %w", err)
		}
		j = st
	}
	cleanup := func() { _ = j.Close() }

	srv, err := mcpserver.New(reg,
		mcpserver.WithAllowed(allowed),
		mcpserver.WithLogger(log),
		mcpserver.WithJournal(j),
		mcpserver.WithToken(cfg.HTTPToken),
		mcpserver.WithVersion(version),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Info("deskfs ready",
		zap.String("root", ws.Root()),
		zap.Bool("read_only", cfg.ReadOnly),
		zap.String("transport", cfg.Transport),
		zap.Bool("journal", cfg.Journal != ""),
	)
	return srv, cleanup, nil
}

func serveHTTP(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	server := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("serving MCP over http", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
