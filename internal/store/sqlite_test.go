package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hakku-ai/gateway/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func testKey(day string) domain.AttemptKey {
	return domain.AttemptKey{
		DeviceKey:   "device-1",
		TaskID:      "document-analysis",
		Day:         day,
		Environment: "prod",
	}
}

func TestSQLiteIncrementCountsUp(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	key := testKey("2026-08-29")

	for want := 1; want <= 2; want++ {
		count, allowed, err := s.Increment(ctx, key, 5)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d unexpectedly rejected", want)
		}
		if count != want {
			t.Errorf("count = %d, want %d", count, want)
		}
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 2 {
		t.Errorf("Get = %d, want 2", got)
	}
}

func TestSQLiteIncrementStopsAtLimit(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	key := testKey("2026-08-29")
	const limit = 5

	for i := 0; i < limit; i++ {
		if _, allowed, err := s.Increment(ctx, key, limit); err != nil || !allowed {
			t.Fatalf("attempt %d: allowed=%v err=%v", i+1, allowed, err)
		}
	}

	count, allowed, err := s.Increment(ctx, key, limit)
	if err != nil {
		t.Fatalf("Increment at limit failed: %v", err)
	}
	if allowed {
		t.Fatal("attempt beyond limit was allowed")
	}
	if count != limit {
		t.Errorf("count = %d, want %d (counter must not grow past limit)", count, limit)
	}

	// The stored value is untouched by the rejected attempt.
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != limit {
		t.Errorf("Get = %d, want %d", got, limit)
	}
}

func TestSQLiteIncrementConcurrent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	key := testKey("2026-08-29")
	const limit = 5
	const goroutines = 20

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	allowedCount := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, allowed, err := s.Increment(ctx, key, limit)
			if err != nil {
				errs <- err
				return
			}
			allowedCount <- allowed
		}()
	}
	wg.Wait()
	close(errs)
	close(allowedCount)

	// busy_timeout applies to every pooled connection, so contention must
	// resolve by waiting, not by surfacing SQLITE_BUSY.
	for err := range errs {
		t.Errorf("concurrent Increment failed: %v", err)
	}

	var allowed int
	for ok := range allowedCount {
		if ok {
			allowed++
		}
	}
	if allowed != limit {
		t.Errorf("allowed = %d, want exactly %d", allowed, limit)
	}
	if count, err := s.Get(ctx, key); err != nil || count != limit {
		t.Errorf("Get = (%d, %v), want (%d, nil)", count, err, limit)
	}
}

func TestSQLiteKeysArePartitioned(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := testKey("2026-08-29")

	variants := []domain.AttemptKey{
		base,
		{DeviceKey: "device-2", TaskID: base.TaskID, Day: base.Day, Environment: base.Environment},
		{DeviceKey: base.DeviceKey, TaskID: "deep-research", Day: base.Day, Environment: base.Environment},
		{DeviceKey: base.DeviceKey, TaskID: base.TaskID, Day: "2026-08-30", Environment: base.Environment},
		{DeviceKey: base.DeviceKey, TaskID: base.TaskID, Day: base.Day, Environment: "dev"},
	}

	for _, key := range variants {
		count, allowed, err := s.Increment(ctx, key, 5)
		if err != nil {
			t.Fatalf("Increment(%+v) failed: %v", key, err)
		}
		if !allowed || count != 1 {
			t.Errorf("Increment(%+v) = (%d, %v), want (1, true)", key, count, allowed)
		}
	}
}

func TestSQLiteGetMissingRowIsZero(t *testing.T) {
	s := newTestSQLite(t)

	count, err := s.Get(context.Background(), testKey("2026-08-29"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Get = %d, want 0", count)
	}
}

func TestSQLiteDeleteOlderThan(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	old := testKey("2026-08-01")
	fresh := testKey("2026-08-29")
	for _, key := range []domain.AttemptKey{old, fresh} {
		if _, _, err := s.Increment(ctx, key, 5); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	cutoff, err := time.Parse("2006-01-02", "2026-08-15")
	if err != nil {
		t.Fatalf("parse cutoff: %v", err)
	}
	deleted, err := s.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if count, _ := s.Get(ctx, old); count != 0 {
		t.Errorf("old counter survived the sweep: %d", count)
	}
	if count, _ := s.Get(ctx, fresh); count != 1 {
		t.Errorf("fresh counter was deleted: %d", count)
	}
}
