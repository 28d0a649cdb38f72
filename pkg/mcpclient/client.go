// Package mcpclient is a small MCP client for the deskfs tools, used by the
// deskfsctl command and by end-to-end tests.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/exec"
	"strings"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/deskfs/pkg/errmodel"
)

// ToolDescriptor is a subset of MCP tool schema.
type ToolDescriptor struct {
	Name         string
	Description  string
	InputSchema  []byte
	OutputSchema []byte
}

// Result is the outcome of a successful tool call.
type Result struct {
	Text       string
	Structured map[string]any
}

type Option func(*config)

type config struct {
	token string
}

// WithToken sends "Authorization: Bearer <token>" on every HTTP request.
func WithToken(token string) Option { return func(c *config) { c.token = token } }

// Client wraps one MCP client session.
type Client struct {
	cs *mcp.ClientSession
}

// Dial connects to a streamable HTTP endpoint such as http://127.0.0.1:8080/mcp.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	hc := &http.Client{}
	if cfg.token != "" {
		hc.Transport = bearerTransport{token: cfg.token, base: http.DefaultTransport}
	}
	return connect(ctx, &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: hc}, cfg)
}

// Spawn starts cmd and speaks MCP over its stdin/stdout.
func Spawn(ctx context.Context, cmd *exec.Cmd, opts ...Option) (*Client, error) {
	return connect(ctx, &mcp.CommandTransport{Command: cmd}, newConfig(opts))
}

// Connect runs the handshake over an arbitrary transport.
func Connect(ctx context.Context, t mcp.Transport, opts ...Option) (*Client, error) {
	return connect(ctx, t, newConfig(opts))
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

func connect(ctx context.Context, t mcp.Transport, cfg *config) (*Client, error) {
	c := mcp.NewClient(&mcp.Implementation{Name: "deskfsctl", Version: "v1"}, nil)
	cs, err := c.Connect(ctx, t, nil)
	if err != nil {
		return nil, err
	}
	return &Client{cs: cs}, nil
}

// Close ends the session.
func (c *Client) Close() error { return c.cs.Close() }

// ListTools returns the tools advertised by the server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	res, err := c.cs.ListTools(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]ToolDescriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		d := ToolDescriptor{Name: t.Name, Description: t.Description}
		if t.InputSchema != nil {
			d.InputSchema, _ = json.Marshal(t.InputSchema)
		}
		if t.OutputSchema != nil {
			d.OutputSchema, _ = json.Marshal(t.OutputSchema)
		}
		out = append(out, d)
	}
	return out, nil
}

// CallTool invokes name. A tool-level failure is returned as *errmodel.Error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*Result, error) {
	res, err := c.cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	text := joinText(res.Content)
	if res.IsError {
		return nil, decodeError(text)
	}
	out := &Result{Text: text}
	if res.StructuredContent != nil {
		b, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out.Structured); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func joinText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func decodeError(text string) error {
	var e errmodel.Error
	if err := json.Unmarshal([]byte(text), &e); err != nil || e.Code == "" {
		return errors.New(text)
	}
	return &e
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(r)
}
