// Package sched runs the bot's background jobs (deletion sweep, marketplace
// poll) on cron schedules.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Runner wraps a cron instance with named jobs.
type Runner struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]cron.EntryID
	logger *slog.Logger
}

// New creates a runner. logger may be nil.
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cron:   cron.New(),
		jobs:   make(map[string]cron.EntryID),
		logger: logger,
	}
}

// Add registers fn under name. The schedule is a standard 5-field cron
// expression or a predefined one like "@every 2m". A job registered under an
// existing name replaces it.
func (r *Runner) Add(name, schedule string, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.cron.AddFunc(schedule, func() {
		r.logger.Debug("job fired", "job", name)
		fn()
	})
	if err != nil {
		return fmt.Errorf("sched: invalid schedule %q for %s: %w", schedule, name, err)
	}
	if old, ok := r.jobs[name]; ok {
		r.cron.Remove(old)
	}
	r.jobs[name] = id
	r.logger.Info("job registered", "job", name, "schedule", schedule)
	return nil
}

// Remove unregisters a job by name.
func (r *Runner) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.jobs[name]; ok {
		r.cron.Remove(id)
		delete(r.jobs, name)
	}
}

// Count returns the number of registered jobs.
func (r *Runner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Start runs the scheduler until the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.cron.Start()
	r.logger.Info("scheduler started")

	<-ctx.Done()
	r.cron.Stop()
	r.logger.Info("scheduler stopped")
	return ctx.Err()
}
