package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCompleter struct {
	calls atomic.Int32
	n     int
	err   error
}

func (f *fakeCompleter) CompletePastEvents(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return f.n, f.err
}

type fakeCleaner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCleaner) Cleanup(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

type fakeGC struct{ calls atomic.Int32 }

func (f *fakeGC) RunGC() { f.calls.Add(1) }

func TestNewPeriodic_Defaults(t *testing.T) {
	t.Parallel()

	p := NewPeriodic("x", 0, func(ctx context.Context) (int, error) { return 0, nil })
	if p.interval != time.Minute {
		t.Errorf("expected default interval 1m, got %v", p.interval)
	}
	if p.String() != "x" {
		t.Errorf("expected name x, got %q", p.String())
	}
}

func TestEventStatusJob_RunOnce(t *testing.T) {
	t.Parallel()

	events := &fakeCompleter{n: 3}
	job := NewEventStatusJob(events, 0)

	if job.interval != 10*time.Minute {
		t.Errorf("expected default interval 10m, got %v", job.interval)
	}
	affected, err := job.RunOnce(context.Background())
	if err != nil || affected != 3 {
		t.Errorf("expected 3 affected without error, got %d, %v", affected, err)
	}
}

func TestImageGCJob_RunOnce(t *testing.T) {
	t.Parallel()

	store := &fakeGC{}
	job := NewImageGCJob(store, 0)

	if job.interval != 30*time.Minute {
		t.Errorf("expected default interval 30m, got %v", job.interval)
	}
	if _, err := job.RunOnce(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if store.calls.Load() != 1 {
		t.Errorf("expected 1 gc pass, got %d", store.calls.Load())
	}
}

func TestTokenCleanupJob_RunOnceError(t *testing.T) {
	t.Parallel()

	tokens := &fakeCleaner{err: errors.New("db down")}
	job := NewTokenCleanupJob(tokens, 0)

	if job.interval != time.Hour {
		t.Errorf("expected default interval 1h, got %v", job.interval)
	}
	if _, err := job.RunOnce(context.Background()); err == nil {
		t.Error("expected the cleanup error to be returned")
	}
	if tokens.calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", tokens.calls.Load())
	}
}

func TestPeriodic_ServeRunsUntilCancelled(t *testing.T) {
	t.Parallel()

	events := &fakeCompleter{}
	job := NewEventStatusJob(events, 10*time.Millisecond).WithStartDelay(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for events.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if events.calls.Load() < 3 {
		t.Errorf("expected at least 3 runs, got %d", events.calls.Load())
	}
}

func TestPeriodic_ErrorsDoNotStopSchedule(t *testing.T) {
	t.Parallel()

	events := &fakeCompleter{err: errors.New("transient")}
	job := NewEventStatusJob(events, 5*time.Millisecond).WithStartDelay(0)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = job.Serve(ctx)

	if events.calls.Load() < 2 {
		t.Errorf("expected repeated runs despite errors, got %d", events.calls.Load())
	}
}

func TestSupervisor_RunsJobs(t *testing.T) {
	t.Parallel()

	events := &fakeCompleter{n: 1}
	sup := NewSupervisor(nil, SupervisorConfig{})
	sup.Add(NewEventStatusJob(events, 10*time.Millisecond).WithStartDelay(0))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for events.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh

	if events.calls.Load() == 0 {
		t.Error("expected the supervised job to run")
	}
}
