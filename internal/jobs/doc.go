// Package jobs runs periodic background work under a suture supervisor.
//
// Each job is a Periodic service: it waits a short start delay, runs once,
// then runs again on every tick until the supervisor's context is cancelled.
// A panicking job is restarted by the supervisor with backoff; a job whose
// run returns an error is only logged and counted, and keeps its schedule.
//
//	sup := jobs.NewSupervisor(logger, jobs.SupervisorConfig{})
//	sup.Add(jobs.NewEventStatusJob(eventService, 10*time.Minute))
//	sup.Add(jobs.NewTokenCleanupJob(tokenService, time.Hour))
//	errCh := sup.ServeBackground(ctx)
//
// # Jobs
//
//   - event-status: marks published events whose date has passed as completed
//   - token-cleanup: deletes expired and long-revoked refresh tokens
//   - image-gc: reclaims value log space in the disk-backed image store
package jobs
