package session

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor sweeps expired sessions every interval until ctx is done.
// A failed or panicking sweep is logged and retried on the next tick.
func RunJanitor(ctx context.Context, sweeper Sweeper, interval time.Duration, onSwept func(int64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, sweeper, interval, onSwept)
		}
	}
}

func sweepOnce(ctx context.Context, sweeper Sweeper, timeout time.Duration, onSwept func(int64)) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("session janitor panicked", "panic", rec)
		}
	}()

	sweepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := sweeper.DeleteExpired(sweepCtx)
	if err != nil {
		slog.Warn("failed to sweep expired sessions", "error", err)
		return
	}
	if n > 0 {
		slog.Info("swept expired sessions", "count", n)
	}
	if onSwept != nil {
		onSwept(n)
	}
}
