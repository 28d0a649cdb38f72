package errmodel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
)

// Category values for compact errors.
const (
	CategoryValidation = "validation"
	CategoryPolicy     = "policy"
	CategorySystem     = "system"
)

// Codes distinguish the failure kinds a transport needs to tell apart.
const (
	CodeAccessDenied  = "access_denied"
	CodeFileNotFound  = "file_not_found"
	CodeIsADirectory  = "is_a_directory"
	CodeIO            = "io_error"
	CodeForbidden     = "forbidden"
	CodeUnauthorized  = "unauthorized"
	CodeNotFound      = "not_found"
	CodeInvalidInput  = "invalid_input"
	CodeInvalidOutput = "invalid_output"
	CodeInternal      = "internal"
)

// Error is the compact error payload returned by tools and HTTP endpoints.
// It implements the error interface.
type Error struct {
	Category string         `json:"category"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
	Causes   []Error        `json:"causes,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap exposes the first underlying cause so errors.Is works against os errors.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// New constructs a new compact error.
func New(category, code, message string, ctx map[string]any, causes ...error) *Error {
	ce := &Error{Category: category, Code: code, Message: truncate(message, 512)}
	if len(ctx) > 0 {
		ce.Context = truncateContext(ctx)
	}
	for _, c := range causes {
		if c == nil {
			continue
		}
		if ce.cause == nil {
			ce.cause = c
		}
		ce.Causes = append(ce.Causes, *From(c))
	}
	return ce
}

// From converts any error into a compact Error. If err is already *Error, it's returned as-is.
func From(err error) *Error {
	var ce *Error
	if err == nil {
		return nil
	}
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Category: CategorySystem, Code: CodeInternal, Message: truncate(err.Error(), 512), cause: err}
}

// Convenience constructors.
func Validation(code, message string, ctx map[string]any) *Error {
	return New(CategoryValidation, code, message, ctx)
}

func Policy(code, message string, ctx map[string]any) *Error {
	return New(CategoryPolicy, code, message, ctx)
}

func System(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategorySystem, code, message, ctx, cause)
	}
	return New(CategorySystem, code, message, ctx)
}

// AccessDenied reports a path that resolves outside the workspace root.
func AccessDenied(path string) *Error {
	return Policy(CodeAccessDenied, "Access denied: "+path, map[string]any{"path": path})
}

// FileNotFound reports a missing target.
func FileNotFound(path string) *Error {
	return Validation(CodeFileNotFound, "File not found: "+path, map[string]any{"path": path})
}

// IsADirectory reports a directory where a file was required.
func IsADirectory(path string) *Error {
	return Validation(CodeIsADirectory, "Is a directory: "+path, map[string]any{"path": path})
}

// IO wraps an underlying filesystem failure.
func IO(op, path string, cause error) *Error {
	msg := op + " failed"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return System(CodeIO, msg, map[string]any{"op": op, "path": path}, cause)
}

// CodeOf returns the code of err, or "" for nil.
func CodeOf(err error) string {
	ce := From(err)
	if ce == nil {
		return ""
	}
	return ce.Code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps category/code to HTTP status.
func HTTPStatus(e *Error) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Category {
	case CategoryValidation:
		switch e.Code {
		case CodeNotFound, CodeFileNotFound:
			return http.StatusNotFound
		case CodeIsADirectory:
			return http.StatusConflict
		default:
			return http.StatusBadRequest
		}
	case CategoryPolicy:
		switch e.Code {
		case CodeUnauthorized:
			return http.StatusUnauthorized
		default:
			return http.StatusForbidden
		}
	case CategorySystem:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTP writes a compact error envelope to the response writer.
// It attempts to include the trace_id if present in ctx.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	ce := From(err)
	if ce == nil {
		ce = &Error{Category: CategorySystem, Code: CodeInternal, Message: "unknown error"}
	}
	status := HTTPStatus(ce)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	traceID := ""
	if r != nil {
		if span := trace.SpanFromContext(r.Context()); span != nil {
			sc := span.SpanContext()
			if sc.HasTraceID() {
				traceID = sc.TraceID().String()
			}
		}
	}
	// Envelope { error: Error, trace_id?: string }
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":    ce,
		"trace_id": traceID,
	})
}

// JSON renders the error as its compact JSON form.
func (e *Error) JSON() string {
	if e == nil {
		return "null"
	}
	b, err := json.Marshal(e)
	if err != nil {
		return `{"category":"system","code":"internal","message":` + quote(e.Error()) + `}`
	}
	return string(b)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// truncate trims s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	suffix := "..."
	if max <= 3 {
		suffix = ""
	}
	cut := max - len(suffix)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}

// truncateContext trims long string values in the context map.
func truncateContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch t := v.(type) {
		case string:
			out[k] = truncate(t, 256)
		default:
			b, err := json.Marshal(t)
			if err == nil && len(b) > 0 {
				s := string(b)
				if len(s) > 256 {
					s = truncate(s, 256)
				}
				out[k] = s
			} else {
				out[k] = t
			}
		}
	}
	return out
}

// IsCategory checks if err belongs to a specific category.
func IsCategory(err error, category string) bool {
	ce := From(err)
	return ce != nil && strings.EqualFold(ce.Category, category)
}
