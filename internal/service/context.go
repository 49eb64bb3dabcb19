package service

import (
	"context"

	"go.uber.org/zap"
)

type cycleKey struct{}

// WithCycle tags ctx with the scheduler cycle number so every component logs
// it without threading it through each signature.
func WithCycle(ctx context.Context, cycle int) context.Context {
	return context.WithValue(ctx, cycleKey{}, cycle)
}

// CycleFromContext returns the cycle number, or -1 outside a cycle.
func CycleFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(cycleKey{}).(int); ok {
		return v
	}
	return -1
}

func loggerFor(ctx context.Context, base *zap.Logger) *zap.Logger {
	if cycle := CycleFromContext(ctx); cycle >= 0 {
		return base.With(zap.Int("cycle", cycle))
	}
	return base
}
