package jobs

import (
	"context"
	"time"
)

// GarbageCollector reclaims space in a blob store
type GarbageCollector interface {
	RunGC()
}

// NewImageGCJob compacts the image store every interval (default 30 minutes)
func NewImageGCJob(store GarbageCollector, interval time.Duration) *Periodic {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return NewPeriodic("image-gc", interval, func(ctx context.Context) (int, error) {
		store.RunGC()
		return 0, nil
	})
}
