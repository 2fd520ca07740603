package session

import (
	"context"
	"log/slog"
	"time"
)

// Expirer is implemented by stores that need active idle eviction.
type Expirer interface {
	Expire(ctx context.Context, ttl time.Duration) ([]string, error)
}

// ExpireCallback is called for every session removed by the sweeper.
type ExpireCallback func(userID string)

// Sweeper periodically evicts sessions idle for longer than TTL.
type Sweeper struct {
	Store    Expirer
	TTL      time.Duration
	Interval time.Duration
	OnExpire ExpireCallback
}

// Run sweeps until ctx is cancelled. A zero TTL disables sweeping.
func (w *Sweeper) Run(ctx context.Context) error {
	if w.TTL <= 0 {
		slog.Info("Session sweeper disabled")
		return nil
	}
	interval := w.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Session sweeper started", "interval", interval, "ttl", w.TTL)

	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("Session sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep runs one eviction pass and returns the number of sessions removed.
func (w *Sweeper) Sweep(ctx context.Context) int {
	expired, err := w.Store.Expire(ctx, w.TTL)
	if err != nil {
		slog.Error("Session sweeper failed to expire sessions", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	for _, id := range expired {
		if w.OnExpire != nil {
			w.OnExpire(id)
		}
	}
	slog.Info("Session sweeper cleanup completed", "cleaned", len(expired))
	return len(expired)
}
