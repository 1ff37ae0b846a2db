package slogx

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/duosync/pkg/idx"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithRunID tags the contextual logger with a fresh sync run ID and returns
// both the new context and the ID.
func WithRunID(ctx context.Context) (context.Context, idx.ID) {
	runID := idx.New()
	l := FromContext(ctx)
	return WithContext(ctx, l.With("run_id", runID.String())), runID
}
