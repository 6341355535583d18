package scheduler

import (
	"context"
	"errors"

	"message-sweeper/internal/usecase"
)

const (
	defaultSweepSchedule     = "*/15 * * * *"
	defaultSweepMaxInstances = 1
)

// Sweeper is the expiration sweep run by SweepJob.
type Sweeper interface {
	Sweep(ctx context.Context) (usecase.SweepResult, error)
}

// SweepJob runs the message expiration sweep.
type SweepJob struct {
	Sweeper      Sweeper
	ScheduleExpr string // empty = "*/15 * * * *"
	Instances    int    // 0 = 1
}

// Compile-time interface check.
var _ Job = (*SweepJob)(nil)

// Name implements Job.
func (j *SweepJob) Name() string { return "expire_messages" }

// Schedule implements Job.
func (j *SweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return defaultSweepSchedule
}

// MaxInstances implements Job.
func (j *SweepJob) MaxInstances() int {
	if j.Instances > 0 {
		return j.Instances
	}
	return defaultSweepMaxInstances
}

// Run performs one sweep. The sweeper logs its own outcome.
func (j *SweepJob) Run(ctx context.Context) error {
	if j.Sweeper == nil {
		return errors.New("scheduler: sweep job has no sweeper")
	}
	_, err := j.Sweeper.Sweep(ctx)
	return err
}
