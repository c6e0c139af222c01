// Package schedule runs periodic maintenance jobs on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/logger"

	"github.com/robfig/cron/v3"
)

type JobFunc func(ctx context.Context) error

type job struct {
	name    string
	timeout time.Duration
	fn      JobFunc
}

// Scheduler wraps a seconds-resolution cron. A job that is still running
// when its next tick fires is skipped.
type Scheduler struct {
	cron *cron.Cron

	mu   sync.Mutex
	jobs map[string]job
}

// cronLogger routes cron's own messages into pkg/logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("[Schedule] "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("[Schedule] "+msg, append(keysAndValues, "err", err)...)
}

func New() *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		jobs: make(map[string]job),
	}
}

// Add registers fn under name. An empty spec disables the job and returns
// false. timeout bounds each run; zero means 30 minutes.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, fn JobFunc) (bool, error) {
	if spec == "" {
		logger.Debug("[Schedule] Job disabled", "job", name)
		return false, nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	j := job{name: name, timeout: timeout, fn: fn}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return false, fmt.Errorf("job %s already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(context.Background(), j) }); err != nil {
		return false, fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.jobs[name] = j
	logger.Info("[Schedule] Job registered", "job", name, "schedule", spec)
	return true, nil
}

func (s *Scheduler) run(ctx context.Context, j job) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	logger.Info("[Schedule] Starting job", "job", j.name)
	if err := j.fn(ctx); err != nil {
		logger.Error("[Schedule] Job failed", "job", j.name, "err", err)
		return err
	}
	logger.Info("[Schedule] Job completed", "job", j.name, "duration", time.Since(start))
	return nil
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.run(ctx, j)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("[Schedule] Stopped before running jobs finished")
	}
}
