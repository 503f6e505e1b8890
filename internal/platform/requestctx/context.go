// Package requestctx carries per-request metadata through context so the
// middleware, handler, and error-envelope layers stay decoupled. The logger
// and trace info travel together in one carrier; each With* call clones it,
// so a derived context never mutates its parent's view.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type carrierKey struct{}

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

type carrier struct {
	logger   *zap.Logger
	trace    TraceInfo
	hasTrace bool
}

func fromContext(ctx context.Context) carrier {
	if ctx == nil {
		return carrier{}
	}
	if c, ok := ctx.Value(carrierKey{}).(carrier); ok {
		return c
	}
	return carrier{}
}

func withCarrier(ctx context.Context, c carrier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, carrierKey{}, c)
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	c := fromContext(ctx)
	c.logger = logger
	return withCarrier(ctx, c)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if c := fromContext(ctx); c.logger != nil {
		return c.logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance used across the package.
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace stores the trace metadata on the context for downstream usage.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	c := fromContext(ctx)
	c.trace = info
	c.hasTrace = true
	return withCarrier(ctx, c)
}

// Trace retrieves the trace metadata from context when available.
func Trace(ctx context.Context) (TraceInfo, bool) {
	c := fromContext(ctx)
	if !c.hasTrace {
		return TraceInfo{}, false
	}
	return c.trace, true
}

// TraceID extracts the trace identifier from context when present.
func TraceID(ctx context.Context) string {
	info, ok := Trace(ctx)
	if !ok {
		return ""
	}
	return info.TraceID
}
