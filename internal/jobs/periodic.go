package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgo/marquee/api/internal/metrics"
)

// RunFunc performs one job run and reports how many records it changed
type RunFunc func(ctx context.Context) (int, error)

// Periodic is a suture.Service that calls a RunFunc on a fixed interval
type Periodic struct {
	name       string
	interval   time.Duration
	startDelay time.Duration
	timeout    time.Duration
	run        RunFunc
}

// NewPeriodic creates a periodic job. Zero interval defaults to one minute.
func NewPeriodic(name string, interval time.Duration, run RunFunc) *Periodic {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Periodic{
		name:       name,
		interval:   interval,
		startDelay: 5 * time.Second,
		timeout:    2 * time.Minute,
		run:        run,
	}
}

// WithStartDelay overrides the wait before the first run
func (p *Periodic) WithStartDelay(d time.Duration) *Periodic {
	p.startDelay = d
	return p
}

// String names the service in supervisor logs
func (p *Periodic) String() string {
	return p.name
}

// Serve implements suture.Service
func (p *Periodic) Serve(ctx context.Context) error {
	slog.Info("job started", slog.String("job", p.name), slog.Duration("interval", p.interval))

	if p.startDelay > 0 {
		select {
		case <-time.After(p.startDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("job stopped", slog.String("job", p.name))
			return ctx.Err()
		}
	}
}

// RunOnce executes a single run with the job timeout and records the outcome
func (p *Periodic) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	affected, err := p.run(runCtx)
	metrics.RecordJobRun(p.name, affected, err)
	if err != nil {
		slog.Error("job run failed", slog.String("job", p.name), slog.String("error", err.Error()))
		return affected, err
	}
	if affected > 0 {
		slog.Info("job run finished", slog.String("job", p.name), slog.Int("affected", affected))
	}
	return affected, nil
}
