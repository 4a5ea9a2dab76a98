// Package scheduler runs the periodic session maintenance jobs (resync and
// expiry checks) on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/report"
)

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler wraps a cron runner. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	sink   report.Sink

	mu      sync.Mutex
	ctx     context.Context
	jobs    map[string]cron.EntryID
	funcs   map[string]func(context.Context) error
	running map[string]bool
}

func New(logger *zap.Logger, sink report.Sink) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	adapter := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(adapter)), cron.WithLogger(adapter)),
		logger:  logger,
		sink:    report.OrDiscard(sink),
		ctx:     context.Background(),
		jobs:    make(map[string]cron.EntryID),
		funcs:   make(map[string]func(context.Context) error),
		running: make(map[string]bool),
	}
}

// Add registers job. Schedules use the standard five-field syntax or
// descriptors such as "@every 5m".
func (s *Scheduler) Add(job Job) error {
	schedule, err := cron.ParseStandard(job.Schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", job.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.jobs[job.Name]; ok {
		s.cron.Remove(id)
	}
	s.funcs[job.Name] = job.Run
	s.jobs[job.Name] = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.Trigger(job.Name)
	}))
	s.logger.Info("job scheduled", zap.String("job", job.Name), zap.String("schedule", job.Schedule))
	return nil
}

// Start begins firing jobs. ctx is passed to every run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Trigger runs the named job now unless a run is already in progress. It
// reports whether the job ran.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	fn, ok := s.funcs[name]
	if !ok || s.running[name] {
		s.mu.Unlock()
		return false
	}
	s.running[name] = true
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[name] = false
		s.mu.Unlock()
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Warn("job failed", zap.String("job", name), zap.Error(err))
		s.sink.Report(report.Failure{Kind: report.KindFetch, Op: name, Entity: "job", Err: err})
		return true
	}
	s.logger.Debug("job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	return true
}

// Next returns the next scheduled run of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
