package jobs

import (
	"context"
	"time"
)

// EventCompleter closes out events whose date has passed
type EventCompleter interface {
	CompletePastEvents(ctx context.Context) (int, error)
}

// NewEventStatusJob marks past published events as completed every interval
// (default 10 minutes)
func NewEventStatusJob(events EventCompleter, interval time.Duration) *Periodic {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return NewPeriodic("event-status", interval, events.CompletePastEvents)
}
