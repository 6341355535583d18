// Package scheduler runs jobs on cron expressions when the sweeper is
// hosted outside a managed timer, e.g. by `sweepctl schedule`.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"
)

// Job defines a periodic task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "*/15 * * * *").
	Schedule() string

	// MaxInstances caps concurrent runs of this job.
	MaxInstances() int

	Run(ctx context.Context) error
}

// Scheduler manages periodic job execution. Each job owns a weighted
// semaphore of MaxInstances; a tick that cannot acquire it is skipped.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []Job
	slots  map[string]*semaphore.Weighted
	logger *slog.Logger
	cancel context.CancelFunc
}

// New creates a scheduler. Jobs must be registered before Start().
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		slots:  make(map[string]*semaphore.Weighted),
		logger: logger,
	}
}

// Register adds a job. Returns an error for duplicate names or a
// non-positive instance cap.
func (s *Scheduler) Register(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.slots[name]; exists {
		return fmt.Errorf("scheduler: duplicate job name %q", name)
	}
	if j.MaxInstances() < 1 {
		return fmt.Errorf("scheduler: job %q must allow at least one instance", name)
	}

	s.slots[name] = semaphore.NewWeighted(int64(j.MaxInstances()))
	s.jobs = append(s.jobs, j)
	return nil
}

// Start parses every schedule and begins executing registered jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))

	for _, job := range s.jobs {
		run := s.runner(ctx, job)
		if _, err := s.cron.AddFunc(job.Schedule(), run); err != nil {
			cancel()
			return fmt.Errorf("scheduler: invalid schedule for job %q: %w", job.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler: started", "jobs", len(s.jobs))
	return nil
}

// runner returns the tick function for job, bounded by its semaphore.
func (s *Scheduler) runner(ctx context.Context, job Job) func() {
	slot := s.slots[job.Name()]
	return func() {
		if !slot.TryAcquire(1) {
			s.logger.Warn("scheduler: instance limit reached, skipping tick",
				"job", job.Name(),
				"max_instances", job.MaxInstances(),
			)
			return
		}
		defer slot.Release(1)

		s.logger.Debug("scheduler: job started", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			s.logger.Error("scheduler: job failed", "job", job.Name(), "err", err)
			return
		}
		s.logger.Debug("scheduler: job completed", "job", job.Name())
	}
}

// Stop cancels running jobs' context and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("scheduler: stopped")
	}
}
