// Package schedule fires synthetic push triggers on a cron schedule so
// pipelines can run nightly without repository activity.
package schedule

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/robfig/cron/v3"
)

// FireFunc receives the synthetic trigger when the schedule is due
type FireFunc func(t domain.Trigger)

// Scheduler fires a pipeline trigger on a cron expression
type Scheduler struct {
	schedule cron.Schedule
	branch   string
	fire     FireFunc

	lastRun  time.Time
	running  bool
	mu       sync.Mutex
	stopChan chan struct{}
}

// ParseCron parses a standard 5-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NewScheduler creates a scheduler that fires a push trigger for branch
// whenever expr is due
func NewScheduler(expr, branch string, fire FireFunc) (*Scheduler, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		schedule: sched,
		branch:   branch,
		fire:     fire,
		stopChan: make(chan struct{}),
	}, nil
}

// NextRun returns the next scheduled fire time
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(time.Now())
}

// ShouldRun returns true if the schedule is due and no scheduled run is
// already in flight
func (s *Scheduler) ShouldRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}

	lastRun := s.lastRun
	if lastRun.IsZero() {
		lastRun = time.Now().Add(-time.Minute)
	}

	return time.Now().After(s.schedule.Next(lastRun))
}

// MarkRunning marks a scheduled run as in flight
func (s *Scheduler) MarkRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

// MarkComplete marks the scheduled run as complete
func (s *Scheduler) MarkComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = time.Now()
}

// Start begins the scheduler loop. Blocks until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if s.ShouldRun() {
				s.MarkRunning()
				go func() {
					log.Printf("[schedule] firing scheduled run for branch %s", s.branch)
					s.fire(domain.Trigger{Event: domain.EventPush, Branch: s.branch})
					s.MarkComplete()
				}()
			}
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
