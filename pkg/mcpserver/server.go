// Package mcpserver exports a tool.Registry over the Model Context Protocol,
// either on stdio or as a streamable HTTP endpoint.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/wilhg/deskfs/pkg/errmodel"
	"github.com/wilhg/deskfs/pkg/journal"
	"github.com/wilhg/deskfs/pkg/tool"
)

// DefaultName is the implementation name announced during the handshake.
const DefaultName = "DesktopFilesystem"

// Server wraps an mcp.Server whose tools are backed by a tool.Registry.
type Server struct {
	srv      *mcp.Server
	reg      *tool.Registry
	allowed  map[string]bool
	validate tool.ValidateFunc
	log      *zap.Logger
	journal  journal.Journal
	metrics  *Metrics
	token    string
	name     string
	version  string
}

type Option func(*Server)

// WithAllowed sets the permissions granted to every call. Defaults to fs:read and fs:write.
func WithAllowed(allowed map[string]bool) Option {
	return func(s *Server) { s.allowed = allowed }
}

// WithValidator overrides the JSON Schema validator.
func WithValidator(v tool.ValidateFunc) Option {
	return func(s *Server) { s.validate = v }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithJournal records every call in j.
func WithJournal(j journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithToken requires "Authorization: Bearer <token>" on the HTTP endpoint.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server and exports every tool currently in reg.
func New(reg *tool.Registry, opts ...Option) (*Server, error) {
	if reg == nil {
		return nil, errors.New("mcpserver: registry is nil")
	}
	s := &Server{
		reg:      reg,
		allowed:  tool.Allow(tool.PermFSRead, tool.PermFSWrite),
		validate: tool.JSONSchemaValidator,
		log:      zap.NewNop(),
		journal:  journal.Nop{},
		name:     DefaultName,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.srv = mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)
	if err := s.RegisterFromRegistry(); err != nil {
		return nil, err
	}
	return s, nil
}

// Server exposes the underlying SDK server, e.g. for in-memory transports.
func (s *Server) Server() *mcp.Server { return s.srv }

// Metrics returns the collectors updated on every call.
func (s *Server) Metrics() *Metrics { return s.metrics }

// RegisterFromRegistry exports local tools to the MCP server.
func (s *Server) RegisterFromRegistry() error {
	var firstErr error
	s.reg.Range(func(name string, t tool.Tool) {
		if firstErr != nil {
			return
		}
		mt, err := mcpTool(t.Describe())
		if err != nil {
			firstErr = fmt.Errorf("tool %s: %w", name, err)
			return
		}
		s.srv.AddTool(mt, s.handler(name, t))
	})
	return firstErr
}

// ServeStdio runs the server on stdin/stdout until ctx is done or the client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.log.Info("serving MCP on stdio", zap.String("name", s.name), zap.String("version", s.version))
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

func mcpTool(d tool.Descriptor) (*mcp.Tool, error) {
	in := new(jsonschema.Schema)
	if err := json.Unmarshal(d.InputSchema, in); err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	mt := &mcp.Tool{Name: d.Name, Description: d.Description, InputSchema: in}
	if len(d.OutputSchema) > 0 {
		out := new(jsonschema.Schema)
		if err := json.Unmarshal(d.OutputSchema, out); err != nil {
			return nil, fmt.Errorf("output schema: %w", err)
		}
		mt.OutputSchema = out
	}
	return mt, nil
}

func (s *Server) handler(name string, t tool.Tool) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]any
		if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				e := errmodel.Validation(errmodel.CodeInvalidInput, "arguments are not a JSON object", map[string]any{"error": err.Error()})
				s.observe(ctx, name, nil, time.Now(), e)
				return errorResult(e), nil
			}
		}
		start := time.Now()
		out, err := s.reg.Call(ctx, name, args, s.allowed, s.validate)
		s.observe(ctx, name, args, start, err)
		if err != nil {
			return errorResult(errmodel.From(err)), nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: renderText(t, out)}},
			StructuredContent: out,
		}, nil
	}
}

// observe updates metrics, the journal and the log for one finished call.
func (s *Server) observe(ctx context.Context, name string, args map[string]any, start time.Time, err error) {
	elapsed := time.Since(start)
	code := errmodel.CodeOf(err)
	s.metrics.Observe(name, code, elapsed)

	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	fields := []zap.Field{zap.String("tool", name), zap.String("path", path), zap.Duration("duration", elapsed)}
	switch {
	case errmodel.IsCategory(err, errmodel.CategorySystem):
		s.log.Error("tool call failed", append(fields, zap.String("code", code), zap.Error(err))...)
	case err != nil:
		s.log.Warn("tool call rejected", append(fields, zap.String("code", code), zap.Error(err))...)
	default:
		s.log.Debug("tool call", fields...)
	}

	rec := journal.Record{Tool: name, Path: path, Code: code, Bytes: int64(len(content)), Duration: elapsed, CreatedAt: start}
	if jerr := s.journal.Append(context.WithoutCancel(ctx), rec); jerr != nil {
		s.log.Error("journal append failed", zap.String("tool", name), zap.Error(jerr))
	}
}

func errorResult(e *errmodel.Error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: e.JSON()}},
	}
}

func renderText(t tool.Tool, out map[string]any) string {
	if r, ok := t.(tool.Renderer); ok {
		return r.Render(out)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprint(out)
	}
	return string(b)
}
