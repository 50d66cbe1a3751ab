// Package jobs schedules the periodic refreshes of the watch command.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is the function signature for jobs.
type JobFunc func(ctx context.Context) error

// Job represents a scheduled job.
type Job struct {
	Name     string
	Schedule string
	Func     JobFunc
	EntryID  cron.EntryID
}

// Scheduler manages background jobs. A run that is still going when its
// next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]*Job
	logger  zerolog.Logger
	timeout time.Duration
	mu      sync.RWMutex
	running sync.Map

	// parent of cron-fired runs, cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new job scheduler. Schedules take a leading
// seconds field. Each run is bounded by timeout.
func NewScheduler(logger zerolog.Logger, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		jobs:    make(map[string]*Job),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a job to the scheduler.
func (s *Scheduler) Register(name, schedule string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	job := &Job{
		Name:     name,
		Schedule: schedule,
		Func:     fn,
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runJob(s.baseContext(), job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}

	job.EntryID = entryID
	s.jobs[name] = job

	s.logger.Info().Str("name", name).Str("schedule", schedule).Msg("job registered")
	return nil
}

// Start starts the scheduler. Scheduled runs derive their context from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", n).Msg("scheduler started")
}

// Stop cancels in-flight scheduled runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	cancel()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// RunNow runs a job immediately and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.runJob(ctx, job)
}

// Next returns when a job fires next, zero before Start.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(job.EntryID).Next
}

func (s *Scheduler) runJob(parent context.Context, job *Job) error {
	if _, busy := s.running.LoadOrStore(job.Name, struct{}{}); busy {
		s.logger.Warn().Str("name", job.Name).Msg("job still running, skipping")
		return nil
	}
	defer s.running.Delete(job.Name)

	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	logger := s.logger.With().Str("name", job.Name).Str("run_id", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	logger.Info().Msg("job started")

	err := job.Func(ctx)

	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("job failed")
	} else {
		logger.Info().Dur("duration", duration).Msg("job completed")
	}
	return err
}

// ListJobs returns all registered jobs sorted by name.
func (s *Scheduler) ListJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}
