// Package scheduler repeats a job on a cron schedule until its context ends.
//
// Runs never overlap: the next fire time is computed only after the previous
// run returned, so fire times that pass during a long run are skipped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/paulschiretz/datpatch/pkg/plog"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ErrNeverFires is returned for an expression that matches no calendar date,
// such as "0 0 30 2 *".
var ErrNeverFires = errors.New("cron expression never fires")

// Job is the work executed on every fire time.
type Job func(ctx context.Context) error

// Scheduler fires a Job on a cron schedule.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	location *time.Location
	job      Job

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// Parse validates a five field cron expression or a descriptor such as
// "@daily" or "@every 6h". Expressions that can never fire are rejected.
func Parse(spec string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	if schedule.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, ErrNeverFires)
	}
	return schedule, nil
}

// New creates a Scheduler that evaluates spec in loc. A nil loc means time.Local.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	schedule, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		location: loc,
		job:      job,
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Next returns the first fire time strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Run blocks and executes the job at every fire time. A failing job is logged
// and does not stop the schedule. Run returns nil once ctx is done and
// ErrNeverFires when the schedule has no further fire time.
func (s *Scheduler) Run(ctx context.Context) error {
	next := s.Next(s.now())
	plog.Info("Scheduler started", "cron", s.spec, "next_run", next)

	for {
		if next.IsZero() {
			plog.Error("Scheduler has no further fire time", "cron", s.spec)
			return fmt.Errorf("schedule %q: %w", s.spec, ErrNeverFires)
		}
		if ctx.Err() != nil {
			plog.Info("Scheduler stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			plog.Info("Scheduler stopped")
			return nil
		case <-s.after(next.Sub(s.now())):
		}

		plog.Info("Scheduled run starting", "scheduled_for", next)
		start := s.now()
		if err := s.job(ctx); err != nil {
			if ctx.Err() != nil {
				plog.Info("Scheduled run interrupted")
				return nil
			}
			plog.Error("Scheduled run failed", "error", err)
		} else {
			plog.Info("Scheduled run finished", "duration", s.now().Sub(start).Round(time.Millisecond))
		}

		next = s.Next(s.now())
		plog.Info("Next scheduled run", "next_run", next)
	}
}
