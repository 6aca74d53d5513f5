// Package schedule runs named jobs at fixed intervals.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/user/netrecon/internal/util"
)

// Job represents a scheduled job.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// State
	lastRun    time.Time
	nextRun    time.Time
	lastError  error
	runs       int
	errorCount int
	running    bool
	mu         sync.RWMutex
}

// JobStatus represents the status of a job.
type JobStatus struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	LastError  string        `json:"last_error,omitempty"`
	Runs       int           `json:"runs"`
	ErrorCount int           `json:"error_count"`
	Running    bool          `json:"running"`
}

// Scheduler manages scheduled jobs.
type Scheduler struct {
	jobs []*Job
	tick time.Duration
	wg   sync.WaitGroup
	mu   sync.RWMutex
}

// NewScheduler creates a scheduler that checks for due jobs every tick.
func NewScheduler(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{tick: tick}
}

// AddJob adds a job to the scheduler. It first runs at the next tick.
func (s *Scheduler) AddJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.nextRun = time.Now()
	s.jobs = append(s.jobs, job)
}

// Run checks for due jobs until ctx is done and then waits for running jobs
// to return.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	util.Info("Scheduler started with %d jobs", len(s.jobs))
	s.checkJobs(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			util.Info("Scheduler stopping")
			s.wg.Wait()
			return
		case now := <-ticker.C:
			s.checkJobs(ctx, now)
		}
	}
}

func (s *Scheduler) checkJobs(ctx context.Context, now time.Time) {
	s.mu.RLock()
	jobs := s.jobs
	s.mu.RUnlock()

	for _, job := range jobs {
		job.mu.RLock()
		shouldRun := !job.running && !now.Before(job.nextRun)
		job.mu.RUnlock()

		if shouldRun {
			s.wg.Add(1)
			go s.runJob(ctx, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *Job) {
	defer s.wg.Done()

	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		return
	}
	job.running = true
	job.lastRun = time.Now()
	job.mu.Unlock()

	util.Debug("Running job: %s", job.Name)

	ctx, cancel := context.WithTimeout(ctx, job.Interval)
	defer cancel()

	err := job.Run(ctx)

	job.mu.Lock()
	job.running = false
	job.runs++
	if err != nil {
		job.lastError = err
		job.errorCount++
		util.Warn("Job %s failed: %v", job.Name, err)
		// Shorter retry on error
		job.nextRun = time.Now().Add(job.Interval / 2)
	} else {
		job.lastError = nil
		util.Debug("Job %s completed", job.Name)
		job.nextRun = job.lastRun.Add(job.Interval)
	}
	job.mu.Unlock()
}

// Statuses returns the status of all jobs.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, len(s.jobs))
	for i, job := range s.jobs {
		job.mu.RLock()
		status := JobStatus{
			Name:       job.Name,
			Interval:   job.Interval,
			LastRun:    job.lastRun,
			NextRun:    job.nextRun,
			Runs:       job.runs,
			ErrorCount: job.errorCount,
			Running:    job.running,
		}
		if job.lastError != nil {
			status.LastError = job.lastError.Error()
		}
		job.mu.RUnlock()
		statuses[i] = status
	}

	return statuses
}

// Trigger makes the named job due at the next tick.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		if job.Name == name {
			job.mu.Lock()
			job.nextRun = time.Now()
			job.mu.Unlock()
			return true
		}
	}
	return false
}
