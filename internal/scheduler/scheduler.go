// Package scheduler triggers recurring jobs at a configured wall-clock
// time.
package scheduler

import (
	"context"
	"log"
	"time"
)

// Job is a named daily task.
type Job struct {
	Name    string
	DailyAt string // "15:04", UTC
	Run     func(ctx context.Context, now time.Time) error
}

// Scheduler runs jobs on a minute tick.
type Scheduler struct {
	jobs   []Job
	logger *log.Logger
}

// New constructs a scheduler.
func New(logger *log.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Start begins the scheduler loop and blocks until the context is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || len(s.jobs) == 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, job := range s.jobs {
		if !shouldRun(job.DailyAt, now) {
			continue
		}
		s.logger.Printf("scheduler: running %s", job.Name)
		if err := job.Run(ctx, now); err != nil {
			s.logger.Printf("scheduler: %s failed: %v", job.Name, err)
		}
	}
}

func shouldRun(dailyAt string, now time.Time) bool {
	hour, minute, err := parseDailyAt(dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
