package engine

import (
	"context"
	"log/slog"
	"time"
)

// Watcher polls on a fixed interval until its context is cancelled.
type Watcher struct {
	Interval time.Duration // default 1 minute
	Polls    uint64        // completed polls

	// OnPoll runs once per interval. Errors are logged and the loop goes on.
	OnPoll func(ctx context.Context) error
}

// WatchSnapshots returns a watcher that keeps p in sync with its reader.
func WatchSnapshots(p *Planner, interval time.Duration) *Watcher {
	return &Watcher{Interval: interval, OnPoll: p.Sync}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("snapshot watcher started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot watcher stopped", "polls", w.Polls)
			return
		case <-ticker.C:
			w.step(ctx)
		}
	}
}

func (w *Watcher) step(ctx context.Context) {
	w.Polls++
	if w.OnPoll == nil {
		return
	}
	if err := w.OnPoll(ctx); err != nil {
		slog.Warn("snapshot poll failed", "poll", w.Polls, "error", err)
	}
}
