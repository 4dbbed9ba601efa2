// Package logging implements the kernel's ambient structured logging and
// per-request correlation IDs, backed by zerolog and google/uuid.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
)

// CorrelationID is the Extensions entry carrying a per-request correlation
// id, minted by WithCorrelation and carried on every log line emitted
// through the logger WithCorrelation returns.
type CorrelationID string

// New builds the kernel's root zerolog.Logger, writing level-appropriate
// JSON to w (os.Stdout in production, a test buffer in tests).
func New(level string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Default builds the root logger writing to os.Stdout.
func Default(level string) zerolog.Logger {
	return New(level, os.Stdout)
}

// WithCorrelation mints a fresh CorrelationID, deposits it into ctx's
// Extensions, and returns a child logger with it attached as a field so
// every subsequent log call for this request carries it automatically.
func WithCorrelation[S any](ctx *racontext.Context[S], base zerolog.Logger) (*racontext.Context[S], zerolog.Logger) {
	id := CorrelationID(uuid.NewString())
	extensions.Set(ctx.Extensions(), id)
	return ctx, base.With().Str("correlation_id", string(id)).Logger()
}

// FromContext recovers the logger previously attached to ctx via
// IntoContext (zerolog.Ctx), falling back to the global disabled logger if none was
// ever attached.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// IntoContext attaches logger to ctx for later recovery via FromContext,
// mirroring zerolog's own hlog-style middleware pattern.
func IntoContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}
