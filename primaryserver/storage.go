package primaryserver

import (
	"context"
	"fmt"

	"github.com/jacokyle01/analysis-session/models"
)

// SubmitResult stores a completed analysis result
func (s *Server) SubmitResult(ctx context.Context, result models.Result) error {
	if err := s.store.Put(ctx, result); err != nil {
		return fmt.Errorf("store result %s: %w", result.JobID, err)
	}

	s.mu.Lock()
	delete(s.jobMap, result.JobID)
	if batchID, ok := s.jobBatch[result.JobID]; ok {
		if batch := s.batches[batchID]; batch != nil && batch.Record(result) {
			s.log.Info("batch progress", "batch_id", batch.ID, "completed", batch.Completed, "total", batch.Total)
		}
	}
	s.mu.Unlock()

	outcome := "ok"
	if result.Error != "" {
		outcome = "error"
	}
	s.metrics.resultsReceived.WithLabelValues(outcome).Inc()
	s.log.Info("received result", "job_id", result.JobID, "best_move", result.BestMove, "eval", result.Eval, "depth", result.Depth)
	return nil
}

// GetResult retrieves a result by job ID
func (s *Server) GetResult(ctx context.Context, jobID string) (models.Result, bool, error) {
	return s.store.Get(ctx, jobID)
}

// AddBatch registers a batch so results for its jobs are grouped.
func (s *Server) AddBatch(batch *models.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batch.ID] = batch
}

func (s *Server) removeBatch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, id)
}

// GetBatch returns a copy of a batch.
func (s *Server) GetBatch(id string) (models.Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return models.Batch{}, false
	}
	cp := *b
	cp.JobIDs = append([]string(nil), b.JobIDs...)
	cp.Results = make(map[string]models.Result, len(b.Results))
	for k, v := range b.Results {
		cp.Results[k] = v
	}
	return cp, true
}
