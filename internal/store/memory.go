package store

import (
	"context"
	"sync"
	"time"

	"github.com/hakku-ai/gateway/internal/domain"
)

const memoryEvictionInterval = time.Hour

// MemoryStore implements AttemptStore with an in-process map. It exists
// for tests and single-instance development runs; counters do not
// survive a restart and are not shared across instances.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[domain.AttemptKey]*domain.AttemptRecord
	done     chan struct{}
	once     sync.Once
}

// NewMemory creates an in-memory attempt store and starts a background
// goroutine that evicts counters from past days so the map cannot grow
// without bound.
func NewMemory() *MemoryStore {
	m := &MemoryStore{
		counters: make(map[domain.AttemptKey]*domain.AttemptRecord),
		done:     make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Get returns the current attempt count for key.
func (m *MemoryStore) Get(_ context.Context, key domain.AttemptKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.counters[key]; ok {
		return rec.Count, nil
	}
	return 0, nil
}

// Increment bumps the counter for key unless it has reached limit. The
// mutex makes the check-and-increment atomic within this process.
func (m *MemoryStore) Increment(_ context.Context, key domain.AttemptKey, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	rec, ok := m.counters[key]
	if !ok {
		m.counters[key] = &domain.AttemptRecord{
			Key:       key,
			Count:     1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return 1, true, nil
	}
	if rec.Count >= limit {
		return rec.Count, false, nil
	}
	rec.Count++
	rec.UpdatedAt = now
	return rec.Count, true, nil
}

// DeleteOlderThan removes counters whose day is before the cutoff date.
func (m *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	day := domain.Day(cutoff)
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key := range m.counters {
		// Days are YYYY-MM-DD, so string order is date order.
		if key.Day < day {
			delete(m.counters, key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the eviction goroutine.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryStore) evictLoop() {
	ticker := time.NewTicker(memoryEvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			today := domain.Day(time.Now())
			m.mu.Lock()
			for key := range m.counters {
				if key.Day < today {
					delete(m.counters, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}
