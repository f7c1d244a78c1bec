package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/sirupsen/logrus"
)

const errorBackoff = 5 * time.Minute

// Scheduler drives the alert cycle on a fixed period. A panic escaping a
// cycle is recovered at this boundary: log it, tell the operators, and
// resume after a short backoff instead of the full interval.
type Scheduler struct {
	Job      *IPOAlertJob
	Interval time.Duration
	Metrics  *shared.BotMetrics

	// OnCycleError, when set, is called with a description of a recovered
	// cycle failure (operator notification side channel).
	OnCycleError func(ctx context.Context, message string)
}

func NewScheduler(job *IPOAlertJob, interval time.Duration, metrics *shared.BotMetrics) *Scheduler {
	return &Scheduler{
		Job:      job,
		Interval: interval,
		Metrics:  metrics,
	}
}

// Start blocks until the context is cancelled. The first cycle runs
// immediately; each later cycle runs one interval after the previous one
// finished.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		failed := s.runCycle(ctx)

		wait := s.Interval
		if failed {
			wait = errorBackoff
			logrus.Infof("Continuing after error in %v...", wait)
		} else {
			logrus.Infof("Next check scheduled at: %s", time.Now().Add(wait).Format("2006-01-02 15:04:05"))
			logrus.Infof("Sleeping for %v...", wait)
		}

		select {
		case <-ctx.Done():
			logrus.Info("Scheduler stopped")
			return
		case <-time.After(wait):
		}
	}
}

// runCycle executes one cycle with panic isolation, reporting whether the
// cycle failed.
func (s *Scheduler) runCycle(ctx context.Context) (failed bool) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			failed = true
			message := fmt.Sprintf("unexpected error in alert cycle: %v", r)
			logrus.Error(message)
			if s.Metrics != nil {
				s.Metrics.RecordCycleError()
			}
			if s.OnCycleError != nil {
				s.OnCycleError(ctx, message)
			}
		}
	}()

	s.Job.Run(ctx)
	if s.Metrics != nil {
		s.Metrics.RecordCycle(s.Job.SentTodayCount(), time.Since(start))
	}
	return false
}
