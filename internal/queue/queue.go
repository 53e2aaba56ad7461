// Package queue moves ingestion work from the API server to background
// workers over Redis using asynq. The asynq task ID is the job ID, so a
// URL submitted twice while its first job is still queued is deduplicated
// at the broker.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeIngestURL is the task type for URL ingestion jobs.
const TypeIngestURL = "ingest:url"

// IngestPayload is the wire form of an ingestion task.
type IngestPayload struct {
	// JobID is the tracker job this task reports into.
	JobID string `json:"job_id"`
	// URL is the page to ingest.
	URL string `json:"url"`
}

// NewIngestTask builds an asynq task for the given job. Retries are
// disabled: a failed ingestion is recorded on the job itself, and the
// caller re-submits by creating a new job.
func NewIngestTask(jobID, url string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{JobID: jobID, URL: url})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal payload: %w", err)
	}
	return asynq.NewTask(TypeIngestURL, payload, asynq.TaskID(jobID), asynq.MaxRetry(0)), nil
}

// ParseIngestPayload decodes an ingestion task payload.
func ParseIngestPayload(task *asynq.Task) (IngestPayload, error) {
	var p IngestPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return IngestPayload{}, fmt.Errorf("queue: unmarshal payload: %w", err)
	}
	if p.JobID == "" || p.URL == "" {
		return IngestPayload{}, fmt.Errorf("queue: payload missing job_id or url")
	}
	return p, nil
}

// RedisOpt builds the asynq Redis connection options.
func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}
