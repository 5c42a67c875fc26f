package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/fusionn-seer/pkg/logger"
)

// Job is a unit of scheduled work.
type Job interface {
	Process(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Process(ctx context.Context) error { return f(ctx) }

type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]Job
	mu      sync.Mutex
	running bool
	busy    sync.Mutex
	entryID cron.EntryID
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		jobs: make(map[string]Job),
	}
}

// Register adds a named job. Jobs run in name order on every tick.
func (s *Scheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job == nil {
		return
	}
	s.jobs[name] = job
}

// Start begins the scheduled job
func (s *Scheduler) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// Convert standard cron (5 fields) to cron with seconds (6 fields)
	id, err := s.cron.AddFunc("0 "+cronExpr, s.runJobs)
	if err != nil {
		return err
	}
	s.entryID = id

	s.cron.Start()
	s.running = true

	logger.Infof("⏰ Scheduler: %s", cronExpr)

	return nil
}

// Reschedule swaps the cron expression of a running scheduler.
func (s *Scheduler) Reschedule(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc("0 "+cronExpr, s.runJobs)
	if err != nil {
		return err
	}
	s.cron.Remove(s.entryID)
	s.entryID = id

	logger.Infof("⏰ Scheduler rescheduled: %s", cronExpr)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
}

// RunNow triggers all jobs immediately in the background
func (s *Scheduler) RunNow() {
	go s.runJobs()
}

// runJobs runs every registered job; overlapping ticks are skipped.
func (s *Scheduler) runJobs() {
	if !s.busy.TryLock() {
		logger.Warn("⏭️  Previous run still in progress, skipping")
		return
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	for i, job := range jobs {
		if err := job.Process(context.Background()); err != nil {
			logger.Errorf("❌ %s job failed: %v", names[i], err)
		}
	}
}

// IsRunning returns whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
