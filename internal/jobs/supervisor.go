package jobs

import (
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// SupervisorConfig tunes restart behavior for background jobs
type SupervisorConfig struct {
	FailureThreshold float64       // failures before backing off, default 5
	FailureDecay     float64       // seconds for failures to decay, default 30
	FailureBackoff   time.Duration // default 15s
	ShutdownTimeout  time.Duration // default 10s
}

// NewSupervisor creates the supervisor that owns every background job.
// Supervisor events are logged through logger.
func NewSupervisor(logger *slog.Logger, cfg SupervisorConfig) *suture.Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	hook := (&sutureslog.Handler{Logger: logger}).MustHook()
	return suture.New("jobs", suture.Spec{
		EventHook:        hook,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}
