package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/deskfs/pkg/errmodel"
)

// Registry keeps tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register registers a Tool by its descriptor name.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	d := t.Describe()
	if d.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}
	r.tools[d.Name] = t
	return nil
}

// Resolve returns a Tool by name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Range calls fn for every registered tool in name order.
func (r *Registry) Range(fn func(name string, t Tool)) {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	snapshot := make(map[string]Tool, len(r.tools))
	for n, t := range r.tools {
		snapshot[n] = t
	}
	r.mu.RUnlock()

	sort.Strings(names)
	for _, n := range names {
		fn(n, snapshot[n])
	}
}

// Call resolves name and runs SafeInvoke on it.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any, allowed map[string]bool, validate ValidateFunc) (map[string]any, error) {
	t, ok := r.Resolve(name)
	if !ok {
		return nil, errmodel.Validation(errmodel.CodeNotFound, "tool not found", map[string]any{"tool": name})
	}
	return SafeInvoke(ctx, t, args, allowed, validate)
}

// SafeInvoke validates input against the tool's schema, invokes it, and validates output.
// Permission checks are passed in by the caller via allowed set; missing permissions cause a policy error.
func SafeInvoke(ctx context.Context, t Tool, args map[string]any, allowed map[string]bool, validate ValidateFunc) (map[string]any, error) {
	if t == nil {
		return nil, errmodel.Validation("bad_tool", "tool is nil", nil)
	}
	d := t.Describe()
	ctx, span := otel.Tracer("deskfs/tool").Start(ctx, "tool.Invoke", trace.WithAttributes(
		attribute.String("tool.name", d.Name),
	))
	defer span.End()
	start := time.Now()

	out, err := safeInvoke(ctx, t, d, args, allowed, validate)
	span.SetAttributes(attribute.Int64("tool.duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errmodel.CodeOf(err))
		return nil, err
	}
	return out, nil
}

func safeInvoke(ctx context.Context, t Tool, d Descriptor, args map[string]any, allowed map[string]bool, validate ValidateFunc) (map[string]any, error) {
	for _, p := range d.Permissions {
		if !allowed[p.Name] {
			return nil, errmodel.Policy(errmodel.CodeForbidden, "permission denied for tool", map[string]any{"permission": p.Name, "tool": d.Name})
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	if validate == nil {
		validate = JSONSchemaValidator
	}
	if err := validate(d.InputSchema, args); err != nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidInput, "tool input validation failed", map[string]any{"tool": d.Name, "error": err.Error()})
	}
	out, err := t.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := validate(d.OutputSchema, out); err != nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidOutput, "tool output validation failed", map[string]any{"tool": d.Name, "error": err.Error()})
	}
	return out, nil
}
