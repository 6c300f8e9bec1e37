package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/marquee/api/internal/messaging"
)

// defaultActivityInterval throttles last_active writes per user
const defaultActivityInterval = 5 * time.Minute

// Publisher publishes domain events
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// ActivityTracker publishes user.active at most once per interval per user
type ActivityTracker struct {
	publisher Publisher
	interval  time.Duration
	now       func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewActivityTracker creates a tracker; interval defaults to five minutes
func NewActivityTracker(publisher Publisher, interval time.Duration) *ActivityTracker {
	if interval <= 0 {
		interval = defaultActivityInterval
	}
	return &ActivityTracker{
		publisher: publisher,
		interval:  interval,
		now:       time.Now,
		last:      make(map[string]time.Time),
	}
}

// Record notes that userID was active now. Publishing failures are logged.
func (t *ActivityTracker) Record(ctx context.Context, userID string) {
	if userID == "" || t.publisher == nil {
		return
	}

	now := t.now()
	t.mu.Lock()
	if prev, ok := t.last[userID]; ok && now.Sub(prev) < t.interval {
		t.mu.Unlock()
		return
	}
	t.last[userID] = now
	if len(t.last) > 10000 {
		t.pruneLocked(now)
	}
	t.mu.Unlock()

	if err := t.publisher.Publish(ctx, messaging.TopicUserActive, messaging.UserActive{UserID: userID, At: now}); err != nil {
		slog.Warn("failed to publish user activity",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (t *ActivityTracker) pruneLocked(now time.Time) {
	for id, at := range t.last {
		if now.Sub(at) >= t.interval {
			delete(t.last, id)
		}
	}
}
