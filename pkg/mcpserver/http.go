package mcpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/deskfs/pkg/errmodel"
)

// HTTPHandler returns the HTTP surface:
//
//	/mcp      streamable MCP transport (bearer token guarded when configured)
//	/healthz  liveness, always "ok"
//	/metrics  Prometheus metrics
func (s *Server) HTTPHandler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.srv
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", otelhttp.NewHandler(s.requireToken(mcpHandler), "mcp"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	want := []byte("Bearer " + s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			errmodel.WriteHTTP(w, r, errmodel.Policy(errmodel.CodeUnauthorized, "missing or invalid bearer token", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}
