// Package otel installs the global tracer provider for deskfs. Spans come from
// tool.SafeInvoke and the otelhttp wrapper on /mcp; with the console exporter
// they are written to stderr, never stdout, which belongs to the stdio
// transport.
package otel

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config controls tracer setup. ServiceName defaults to "deskfs" and
// ServiceVersion to $DESKFS_VERSION.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// UseStdout turns on the console span exporter (-trace-stdout).
	UseStdout bool
	// Writer is where the console exporter writes. Defaults to os.Stderr.
	Writer io.Writer
}

// Init sets the global tracer provider. Without UseStdout spans are recorded
// but not exported. The returned func flushes and stops the provider.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "deskfs"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = os.Getenv("DESKFS_VERSION")
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithProcess(),
		sdkresource.WithOS(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		return nil, err
	}

	var tp *sdktrace.TracerProvider
	if cfg.UseStdout {
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp,
				sdktrace.WithMaxExportBatchSize(512),
				sdktrace.WithBatchTimeout(200*time.Millisecond),
			),
			sdktrace.WithResource(res),
		)
	} else {
		tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	}

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
