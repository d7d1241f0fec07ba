// Package besteffort runs auxiliary side effects (audit writes, history rows, passes,
// confirmations) whose failure must never fail the primary operation.
package besteffort

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Outcome reports how a best-effort task went. Callers may inspect it but it is never an error.
type Outcome struct {
	Name     string
	OK       bool
	Err      error
	Duration time.Duration
}

// Run executes fn, recovering panics and logging failures at warn level.
func Run(ctx context.Context, logger *zap.Logger, name string, fn func(ctx context.Context) error) (out Outcome) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	out.Name = name
	defer func() {
		if r := recover(); r != nil {
			out.OK = false
			out.Err = fmt.Errorf("panic: %v", r)
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			logger.Warn("best-effort task failed", zap.String("task", name), zap.Error(out.Err), zap.Duration("duration", out.Duration))
		}
	}()
	if err := fn(ctx); err != nil {
		out.Err = err
		return out
	}
	out.OK = true
	return out
}

// WithTimeout races fn against budget. On timeout, error or panic it returns fallback and false.
// fn keeps running in the background after a timeout; it receives a context that is cancelled
// when the budget expires so well-behaved callees stop early.
func WithTimeout[T any](ctx context.Context, budget time.Duration, fallback T, fn func(ctx context.Context) (T, error)) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return fallback, false
		}
		return r.v, true
	case <-ctx.Done():
		return fallback, false
	}
}
