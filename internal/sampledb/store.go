package sampledb

import (
	"context"
	"time"
)

// Store is the read/write surface the alert engine and workloads use to
// exchange samples. Window must return samples newest-first, bounded to
// the last `duration` and to at most `limit` entries.
type Store interface {
	Append(ctx context.Context, s Sample) error
	Window(ctx context.Context, monitorID string, duration time.Duration, limit int) ([]Sample, error)
}
