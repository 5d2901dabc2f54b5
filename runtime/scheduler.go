package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named maintenance task run on a schedule.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration // per-run bound; 0 means DefaultJobTimeout
	Run      func(ctx context.Context) error
}

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

// Scheduler runs maintenance jobs such as memory purges and health refreshes.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger zerolog.Logger

	mu   sync.Mutex
	ctx  context.Context
	runs map[string]int
}

// NewScheduler validates every job's schedule and returns a Scheduler.
func NewScheduler(logger zerolog.Logger, jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithParser(scheduleParser)),
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    context.Background(),
		runs:   make(map[string]int),
	}

	for _, job := range jobs {
		if job.Run == nil {
			return nil, fmt.Errorf("job %q has no run function", job.Name)
		}
		sched, err := ParseSchedule(job.Schedule)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
		job := job
		s.cron.Schedule(sched, cron.FuncJob(func() { s.runJob(job) }))
		s.jobs = append(s.jobs, job)
	}
	return s, nil
}

// Start runs every job once, then keeps running them on schedule until ctx
// is cancelled. It blocks until in-flight jobs have finished.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Starting scheduler")

	// Run initial pass immediately
	for _, job := range s.jobs {
		s.runJob(job)
	}

	s.cron.Start()
	<-ctx.Done()

	s.logger.Info().Msg("Scheduler stopped: context cancelled")
	<-s.cron.Stop().Done()
}

// Runs returns how many times the named job has run.
func (s *Scheduler) Runs(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[name]
}

func (s *Scheduler) runJob(job Job) {
	s.mu.Lock()
	parent := s.ctx
	s.runs[job.Name]++
	s.mu.Unlock()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", job.Name).Msg("Scheduled job failed")
		return
	}
	s.logger.Debug().Str("job", job.Name).Dur("took", time.Since(start)).Msg("Scheduled job finished")
}
