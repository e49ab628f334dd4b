// Package domain contains core domain types for the hakku.ai gateway.
package domain

import (
	"time"
)

// AttemptKey identifies a daily attempt counter. Counters are partitioned
// by device, task, calendar day and deployment environment so the same
// device/task pair never mixes across deployments.
type AttemptKey struct {
	DeviceKey   string
	TaskID      string
	Day         string // YYYY-MM-DD, server-local
	Environment string
}

// AttemptRecord tracks daily prompt-test usage for one key.
type AttemptRecord struct {
	Key       AttemptKey
	Count     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Day formats t as the calendar-day partition value used in AttemptKey.
func Day(t time.Time) string {
	return t.Format("2006-01-02")
}

// Remaining returns how many attempts are left under limit given the
// current count. Never negative.
func Remaining(count, limit int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}
