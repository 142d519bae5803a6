// Package scheduler runs the reconciliation jobs on their own fixed intervals.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
)

type Job interface {
	Name() string
	Interval() time.Duration
	RunOnce(ctx context.Context) error
}

type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger logrus.FieldLogger
}

func New(jobs []Job, logger logrus.FieldLogger) *Scheduler {
	if logger == nil {
		logger = factory.NewModuleLogger("scheduler")
	}
	cronLogger := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	return &Scheduler{cron: c, jobs: jobs, logger: logger}
}

// Start registers every job and starts ticking. Jobs run with ctx until it is done.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		interval := job.Interval()
		if interval <= 0 {
			return fmt.Errorf("invalid interval %s for job %s", interval, job.Name())
		}
		spec := "@every " + interval.String()
		if _, err := s.cron.AddJob(spec, cron.FuncJob(func() { RunJob(ctx, job, s.logger) })); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.Name(), "schedule": spec}).Info("job_scheduled")
	}
	s.cron.Start()
	return nil
}

// Stop stops scheduling. The returned context is done once running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunJob executes one run of job and logs its outcome.
func RunJob(ctx context.Context, job Job, logger logrus.FieldLogger) {
	start := time.Now()
	err := job.RunOnce(ctx)
	entry := logger.WithField("job", job.Name()).WithField("latency", time.Since(start).String())
	if err != nil {
		entry.WithError(err).Error("job_failed")
		return
	}
	entry.Info("job_completed")
}

type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
