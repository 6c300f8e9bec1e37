package jobs

import (
	"context"
	"time"
)

// TokenCleaner purges refresh tokens that can no longer be used
type TokenCleaner interface {
	Cleanup(ctx context.Context) error
}

// NewTokenCleanupJob deletes expired and revoked refresh tokens every
// interval (default hourly)
func NewTokenCleanupJob(tokens TokenCleaner, interval time.Duration) *Periodic {
	if interval <= 0 {
		interval = time.Hour
	}
	return NewPeriodic("token-cleanup", interval, func(ctx context.Context) (int, error) {
		return 0, tokens.Cleanup(ctx)
	})
}
