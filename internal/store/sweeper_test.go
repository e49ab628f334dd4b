package store

import (
	"context"
	"testing"
	"time"

	"github.com/hakku-ai/gateway/internal/domain"
)

func TestSweepOnceDeletesOnlyStaleRows(t *testing.T) {
	s := NewMemory()
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	old := domain.AttemptKey{
		DeviceKey:   "device-1",
		TaskID:      "document-analysis",
		Day:         domain.Day(time.Now().AddDate(0, 0, -30)),
		Environment: "prod",
	}
	fresh := old
	fresh.Day = domain.Day(time.Now())

	for _, key := range []domain.AttemptKey{old, fresh} {
		if _, _, err := s.Increment(ctx, key, 5); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	sweepOnce(ctx, s, 14*24*time.Hour)

	if count, err := s.Get(ctx, old); err != nil || count != 0 {
		t.Errorf("stale row survived the sweep: count=%d, err=%v", count, err)
	}
	if count, err := s.Get(ctx, fresh); err != nil || count != 1 {
		t.Errorf("fresh row was swept: count=%d, err=%v", count, err)
	}
}
