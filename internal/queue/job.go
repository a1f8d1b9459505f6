// Package queue implements a Redis-backed durable job queue with
// at-least-once delivery, bounded retries, and rate-limited workers.
package queue

import (
	"encoding/json"
	"time"
)

// Queue names used by the pipeline. CharacterFetch and IssueFetch are
// registered but have no workers yet.
const (
	QueuePineconeExpansion  = "pinecone-expansion"
	QueueEntityVerification = "entity-verification"
	QueueCharacterFetch     = "character-fetch"
	QueueIssueFetch         = "issue-fetch"
)

// Job types.
const (
	JobTypeExpandPineconeBatch = "expand-pinecone-batch"
	JobTypeVerifyEntity        = "verify-entity"
	JobTypeVerifyEntityBatch   = "verify-entity-batch"
)

// Job is the unit of work that moves through a queue. The serialized
// form is the member stored in the Redis lists and sorted sets.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
	LastError   string          `json:"lastError,omitempty"`
}

func (j *Job) Marshal() (string, error) {
	raw, err := json.Marshal(j)
	return string(raw), err
}

func UnmarshalJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, err
	}
	return &job, nil
}
