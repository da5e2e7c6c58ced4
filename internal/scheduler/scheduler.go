package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"lifedash/internal/log"
)

// Job is a periodic task. The context is cancelled when the scheduler stops.
type Job func(ctx context.Context, now time.Time)

// Scheduler wraps cron-based jobs. A job never overlaps with its own
// previous run, and a panicking job is recovered and logged.
type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(loc *time.Location, logger *log.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Default(log.ComponentScheduler)
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc:    loc,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers job to run every interval, rounded down to whole seconds.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	schedule := fmt.Sprintf("@every %ds", seconds)
	id, err := s.cron.AddFunc(schedule, func() {
		start := time.Now()
		job(s.ctx, start.In(s.loc))
		s.logger.Debug("Job finished", "job", name, log.FieldDuration, time.Since(start).Milliseconds())
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("Job scheduled", "job", name, "interval", interval.String())
	return id, nil
}

// RunNow runs job once synchronously, outside the cron loop.
func (s *Scheduler) RunNow(job Job) {
	job(s.ctx, time.Now().In(s.loc))
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs' context and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// cronLogger adapts the component logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append(keysAndValues, log.FieldError, err.Error())...)
}
