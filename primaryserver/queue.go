package primaryserver

import (
	"context"
	"errors"
	"time"

	"github.com/jacokyle01/analysis-session/models"
)

// ErrQueueFull is returned when a job cannot be queued.
var ErrQueueFull = errors.New("job queue full")

// AddJob adds a new analysis job to the queue
func (s *Server) AddJob(job models.Job) error {
	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()
	return s.addJobLocked(job)
}

// AddJobs queues every job or none of them.
func (s *Server) AddJobs(jobs []models.Job) error {
	s.enqueueMu.Lock()
	defer s.enqueueMu.Unlock()

	// Only producers hold enqueueMu, so free slots can only grow meanwhile.
	if len(jobs) > s.freeSlots() {
		s.metrics.jobsDropped.Add(float64(len(jobs)))
		s.log.Warn("job queue full, dropping jobs", "count", len(jobs), "free", s.freeSlots())
		return ErrQueueFull
	}
	for _, job := range jobs {
		if err := s.addJobLocked(job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addJobLocked(job models.Job) error {
	s.mu.Lock()
	s.jobMap[job.ID] = job
	if job.BatchID != "" {
		s.jobBatch[job.ID] = job.BatchID
	}
	s.mu.Unlock()

	select {
	case s.jobs <- job:
	default:
		s.mu.Lock()
		delete(s.jobMap, job.ID)
		delete(s.jobBatch, job.ID)
		s.mu.Unlock()
		s.metrics.jobsDropped.Inc()
		s.log.Warn("job queue full, dropping job", "job_id", job.ID)
		return ErrQueueFull
	}

	s.metrics.jobsQueued.Inc()
	s.log.Info("added job to queue", "job_id", job.ID, "depth", job.Depth)
	return nil
}

// GetJob returns the next job for a worker, waiting up to the configured
// poll wait.
func (s *Server) GetJob(ctx context.Context) (models.Job, bool) {
	timer := time.NewTimer(s.cfg.PollWait)
	defer timer.Stop()

	select {
	case job := <-s.jobs:
		return job, true
	case <-timer.C:
		return models.Job{}, false
	case <-ctx.Done():
		return models.Job{}, false
	}
}

// freeSlots reports how many more jobs fit in the queue right now.
func (s *Server) freeSlots() int {
	return cap(s.jobs) - len(s.jobs)
}
