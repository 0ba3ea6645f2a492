package fdfs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/fdfsgo/fdfs-client/internal/telemetry"
)

func defaultTracer() trace.Tracer {
	return nooptrace.NewTracerProvider().Tracer("fdfs-client")
}

func (c *Client) startSpan(ctx context.Context, op, fileID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("fdfs.operation", op)}
	if fileID != "" {
		attrs = append(attrs, attribute.String("fdfs.file_id", fileID))
	}
	return c.tracer.Start(ctx, "fdfs."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// EnableTracing switches the client from the default no-op tracer to one
// exporting spans over OTLP/gRPC to endpoint. The returned shutdown func
// flushes and closes the exporter; callers should defer it.
func (c *Client) EnableTracing(ctx context.Context, endpoint, serviceName string) (shutdown func(context.Context) error, err error) {
	tracer, shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:      true,
		OTLPEndpoint: endpoint,
		ServiceName:  serviceName,
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tracer = tracer
	c.mu.Unlock()
	return shutdown, nil
}

// EnableProfiling starts continuous CPU/heap profiling shipped to a
// Pyroscope server at serverAddress, under applicationName. The returned
// stop func should be deferred by the caller; profiling is off by default
// and has no effect on any operation's observable behavior.
func (c *Client) EnableProfiling(serverAddress, applicationName string) (stop func() error, err error) {
	closer, err := telemetry.StartProfiling(telemetry.ProfilingConfig{
		Enabled:         true,
		ServerAddress:   serverAddress,
		ApplicationName: applicationName,
	})
	if err != nil {
		return nil, err
	}
	return closer.Stop, nil
}
