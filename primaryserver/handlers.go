package primaryserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jacokyle01/analysis-session/models"
)

// HTTP handlers
func (s *Server) handleGetJob(c *gin.Context) {
	job, ok := s.GetJob(c.Request.Context())
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleSubmitResult(c *gin.Context) {
	var result models.Result
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}
	if result.JobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing job_id"})
		return
	}

	if err := s.SubmitResult(c.Request.Context(), result); err != nil {
		s.log.Error("failed to store result", "job_id", result.JobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store result"})
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var job models.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	s.applyDefaults(&job)
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := job.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.AddJob(job); err != nil {
		c.JSON(queueStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID})
}

func (s *Server) handleGetResult(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing job_id parameter"})
		return
	}

	result, exists, err := s.GetResult(c.Request.Context(), jobID)
	if err != nil {
		s.log.Error("failed to read result", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read result"})
		return
	}
	if !exists {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleViewQueue(c *gin.Context) {
	s.mu.RLock()
	pendingJobs := make([]models.Job, 0, len(s.jobMap))
	for _, job := range s.jobMap {
		pendingJobs = append(pendingJobs, job)
	}
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"queue_length": len(s.jobs),
		"pending_jobs": pendingJobs,
	})
}

// analysisRequest is a whole game to analyze move by move.
type analysisRequest struct {
	Pgn     string `json:"pgn" binding:"required"` // e.g. "1. e4 e5 2. Nf3 Nf6"
	Depth   int    `json:"depth"`
	TimeMS  int    `json:"time_ms"`
	MultiPV int    `json:"multipv"`
}

// requestForAnalysis splits a game into one job per move, grouped in a
// batch so the results can be pieced back together.
func (s *Server) requestForAnalysis(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	template := models.Job{Depth: req.Depth, TimeMS: req.TimeMS, MultiPV: req.MultiPV, BatchID: uuid.NewString()}
	s.applyDefaults(&template)

	jobs, err := JobsFromPGN(req.Pgn, template)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	// Registered before queueing so no early result misses its batch.
	batch := models.NewBatch(template.BatchID, ids)
	s.AddBatch(batch)

	if err := s.AddJobs(jobs); err != nil {
		s.removeBatch(batch.ID)
		c.JSON(queueStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batch.ID, "job_ids": ids})
}

func (s *Server) handleGetBatch(c *gin.Context) {
	id := c.Query("batch_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing batch_id parameter"})
		return
	}
	batch, ok := s.GetBatch(id)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) applyDefaults(job *models.Job) {
	if job.Depth == 0 {
		job.Depth = s.cfg.DefaultDepth
	}
	if job.TimeMS == 0 {
		job.TimeMS = s.cfg.DefaultTimeMS
	}
}

func queueStatus(err error) int {
	if errors.Is(err, ErrQueueFull) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
