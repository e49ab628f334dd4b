package store

import (
	"context"
	"log/slog"
	"time"
)

const sweepInterval = time.Hour

// StartRetentionSweeper runs a background goroutine that periodically
// deletes attempt counters older than the retention window. Counters
// only matter for the current day; old rows are dead weight.
func StartRetentionSweeper(ctx context.Context, s AttemptStore, retention time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention sweeper started", "interval", sweepInterval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, s, retention)
			case <-ctx.Done():
				slog.Info("Retention sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, s AttemptStore, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	deleted, err := s.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention sweep complete", "deleted", deleted, "cutoff", cutoff.Format("2006-01-02"))
	}
}
