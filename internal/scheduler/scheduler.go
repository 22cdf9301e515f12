// Package scheduler runs periodic maintenance jobs on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	logx "github.com/atendimento-virtual/server/pkg/logger"
)

// Job is a named unit of periodic work.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs. A job whose previous tick is still running
// skips the next one.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []Job
	names  map[string]struct{}
	locks  map[string]*sync.Mutex
	cancel context.CancelFunc
}

func New() *Scheduler {
	return &Scheduler{
		names: make(map[string]struct{}),
		locks: make(map[string]*sync.Mutex),
	}
}

// RegisterJob adds a job. Must be called before Start.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("scheduler: duplicate job name %q", name)
	}
	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start parses every schedule (five-field expressions and descriptors such
// as "@every 5m") and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s.cron = cron.New(cron.WithParser(parser))

	for _, j := range s.jobs {
		job := j
		lock := s.locks[job.Name()]

		_, err := s.cron.AddFunc(job.Schedule(), func() {
			if !lock.TryLock() {
				logx.Warn().Str("job", job.Name()).Msg("scheduler: job still running, skipping tick")
				return
			}
			defer lock.Unlock()

			if err := job.Run(ctx); err != nil {
				logx.Error().Err(err).Str("job", job.Name()).Msg("scheduler: job failed")
			}
		})
		if err != nil {
			cancel()
			return fmt.Errorf("scheduler: invalid schedule for job %q: %w", job.Name(), err)
		}
	}

	s.cron.Start()
	logx.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		logx.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
