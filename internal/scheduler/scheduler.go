// Package scheduler runs the periodic sync jobs. Each job can be switched
// off on its own and never overlaps with itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unclebandit/coupon-dispatch/internal/metrics"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
)

type Job struct {
	Name     string
	Interval time.Duration
	Enabled  bool
	Run      func(ctx context.Context) error
}

type entry struct {
	job     Job
	running sync.Mutex
}

type Scheduler struct {
	log    *slog.Logger
	jobs   map[string]*entry
	order  []string
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func New(log *slog.Logger, jobs ...Job) *Scheduler {
	s := &Scheduler{log: log, jobs: make(map[string]*entry)}
	for _, j := range jobs {
		s.jobs[j.Name] = &entry{job: j}
		s.order = append(s.order, j.Name)
	}
	return s
}

// Start launches one ticker per enabled job. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range s.order {
		e := s.jobs[name]
		if !e.job.Enabled || e.job.Interval <= 0 {
			s.log.Info("scheduled job disabled", slog.String("job", name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, e)
		s.log.Info("scheduled job started",
			slog.String("job", name),
			slog.Duration("interval", e.job.Interval))
	}
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()
	ticker := time.NewTicker(e.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.run(ctx, e)
			if err != nil && !errors.Is(err, ErrJobRunning) && ctx.Err() == nil {
				s.log.Error("scheduled job failed", slog.String("job", e.job.Name), slog.Any("error", err))
			}
		}
	}
}

// Stop cancels the tickers and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunOnce runs a job synchronously whether or not it is enabled.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	if !e.running.TryLock() {
		metrics.JobRuns.WithLabelValues(e.job.Name, "skipped").Inc()
		return ErrJobRunning
	}
	defer e.running.Unlock()

	start := time.Now()
	err := e.job.Run(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.JobRuns.WithLabelValues(e.job.Name, status).Inc()
	s.log.Debug("job finished",
		slog.String("job", e.job.Name),
		slog.String("status", status),
		slog.Duration("took", time.Since(start)))
	return err
}

// Jobs lists the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.order...)
}
