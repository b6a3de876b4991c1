package obs

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithTrace tags log with the trace and span ids carried by ctx, if any.
func WithTrace(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// WithRequest is WithTrace plus the gateway request id.
func WithRequest(ctx context.Context, log *zap.Logger, requestID string) *zap.Logger {
	l := WithTrace(ctx, log)
	if requestID != "" {
		l = l.With(zap.String("request_id", requestID))
	}
	return l
}
