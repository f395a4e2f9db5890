package models

// Batch groups the jobs created from one game.
type Batch struct {
	ID        string            `json:"id"`
	JobIDs    []string          `json:"job_ids"`
	Results   map[string]Result `json:"results"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
}

// NewBatch returns an empty batch for jobIDs.
func NewBatch(id string, jobIDs []string) *Batch {
	return &Batch{
		ID:      id,
		JobIDs:  jobIDs,
		Results: make(map[string]Result, len(jobIDs)),
		Total:   len(jobIDs),
	}
}

// Record stores a result for one of the batch's jobs. It reports false for
// jobs outside the batch; a repeated result replaces the earlier one.
func (b *Batch) Record(r Result) bool {
	found := false
	for _, id := range b.JobIDs {
		if id == r.JobID {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if _, seen := b.Results[r.JobID]; !seen {
		b.Completed++
	}
	b.Results[r.JobID] = r
	return true
}

// Done reports whether every job has a result.
func (b *Batch) Done() bool { return b.Completed >= b.Total }
