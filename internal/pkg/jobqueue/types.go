package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeExpirationSweep JobType = "expiration_sweep"
	JobTypeRatingSync      JobType = "rating_sync"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ExpirationSweepJobPayload identifies who triggered a sweep. Zero means the scheduler.
type ExpirationSweepJobPayload struct {
	RequestedBy uint `json:"requested_by"`
}

func (p ExpirationSweepJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"requested_by": p.RequestedBy,
	}
}

// RatingSyncJobPayload contains the payload for an IGDB rating sync batch
type RatingSyncJobPayload struct {
	Limit       int  `json:"limit"`        // 0 = configured batch size
	RequestedBy uint `json:"requested_by"` // 0 = scheduler
}

// ToMap converts the payload to a map for storage
func (p RatingSyncJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"limit":        p.Limit,
		"requested_by": p.RequestedBy,
	}
}

// RatingSyncJobPayloadFromMap creates a payload from a map
func RatingSyncJobPayloadFromMap(data map[string]interface{}) (*RatingSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload RatingSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
